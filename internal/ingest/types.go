package ingest

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultFetchTimeout = 15 * time.Second
	DefaultMaxAttempts  = 3
	DefaultBackoffUnit  = time.Second

	// MinPageTextLength is the shortest reduced text still treated as a grant page.
	MinPageTextLength = 100
	// MaxPageTextChars caps the reduced text handed to the extractor.
	MaxPageTextChars = 8000

	maxBodyBytes = 10 * 1024 * 1024
)

const defaultUserAgent = "ACT-GrantEnrichment/1.0 (+https://act.place; grant research)"

// Reasons a page fetch produced no usable text. None of them are fatal to a run.
var (
	ErrFetchExhausted = errors.New("fetch failed after retries")
	ErrPDFContent     = errors.New("content is a PDF")
	ErrTooShort       = errors.New("page text too short")
)

// PageFetcher retrieves a grant page and reduces it to plain text.
// A non-nil error means "no usable page" and is never a reason to stop a batch.
type PageFetcher interface {
	FetchGrantPage(ctx context.Context, url string) (string, error)
}
