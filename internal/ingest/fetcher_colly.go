package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"
)

// CollyFetcher implements PageFetcher using Colly. It shares the HTTP
// fetcher's gating rules and linear retry schedule, and picks up Colly's
// charset detection for non-UTF-8 funder sites.
type CollyFetcher struct {
	UserAgent      string
	MaxAttempts    int
	BackoffUnit    time.Duration
	RequestTimeout time.Duration
	MaxBodySize    int
}

// NewCollyFetcher creates a CollyFetcher with the pipeline defaults.
func NewCollyFetcher(timeout time.Duration) *CollyFetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &CollyFetcher{
		UserAgent:      defaultUserAgent,
		MaxAttempts:    DefaultMaxAttempts,
		BackoffUnit:    DefaultBackoffUnit,
		RequestTimeout: timeout,
		MaxBodySize:    maxBodyBytes,
	}
}

func (f *CollyFetcher) buildCollector(ctx context.Context) *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(f.UserAgent),
		colly.MaxBodySize(f.MaxBodySize),
		colly.AllowURLRevisit(),
		colly.DetectCharset(),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(f.RequestTimeout)
	return c
}

// FetchGrantPage implements PageFetcher.
func (f *CollyFetcher) FetchGrantPage(ctx context.Context, targetURL string) (string, error) {
	attempts := f.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	c := f.buildCollector(ctx)

	var (
		body        []byte
		contentType string
		lastErr     error
		tries       = 1
	)

	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		contentType = r.Headers.Get("Content-Type")
	})

	c.OnError(func(r *colly.Response, err error) {
		lastErr = err
		if tries >= attempts || ctx.Err() != nil {
			return
		}
		log.Debug().Str("component", "colly").Str("url", targetURL).Int("attempt", tries).Err(err).Msg("fetch attempt failed")
		wait := time.Duration(tries) * f.BackoffUnit
		tries++
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		_ = r.Request.Retry()
	})

	visitErr := c.Visit(targetURL)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if body == nil && !isPDF(contentType) {
		if lastErr == nil {
			lastErr = visitErr
		}
		log.Warn().Str("component", "colly").Str("url", targetURL).Int("attempts", tries).Err(lastErr).Msg("page fetch gave up")
		return "", fmt.Errorf("%w: %v", ErrFetchExhausted, lastErr)
	}

	text, err := ReducePage(contentType, body)
	if err != nil {
		log.Warn().Str("component", "colly").Str("url", targetURL).Err(err).Msg("page rejected")
		return "", err
	}
	return text, nil
}
