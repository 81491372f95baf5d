package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/act/grant-enrichment/internal/enrich"
)

// discordContentLimit is Discord's hard cap on message content length.
const discordContentLimit = 2000

// DiscordNotifier posts run summaries to a Discord webhook.
type DiscordNotifier struct {
	WebhookURL string
	HTTP       *http.Client
}

func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{
		WebhookURL: webhookURL,
		HTTP:       &http.Client{Timeout: 10 * time.Second},
	}
}

type discordMessage struct {
	Username string `json:"username,omitempty"`
	Content  string `json:"content"`
}

// NotifyRun implements enrich.Notifier.
func (d *DiscordNotifier) NotifyRun(ctx context.Context, s enrich.Summary) error {
	payload, err := json.Marshal(discordMessage{Username: "Grant Enrichment", Content: FormatSummary(s)})
	if err != nil {
		return fmt.Errorf("failed to marshal discord message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := d.HTTP
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("discord webhook failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook returned status: %d", resp.StatusCode)
	}
	return nil
}

// FormatSummary renders the message body for a finished run.
func FormatSummary(s enrich.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Grant enrichment** (%s): %d enriched, %d failed, %d skipped of %d",
		s.Trigger, s.Enriched, s.Failed, s.Skipped, s.Total)

	if created := s.CreatedApplications(); len(created) > 0 {
		b.WriteString("\nDraft applications created:")
		for _, name := range created {
			b.WriteString("\n- " + name)
		}
	}

	var failed []string
	for _, o := range s.Outcomes {
		if o.Status == enrich.StatusFailed {
			failed = append(failed, fmt.Sprintf("%s (%s)", o.GrantName, o.Stage))
		}
	}
	if len(failed) > 0 {
		b.WriteString("\nFailed: " + strings.Join(failed, ", "))
	}

	msg := b.String()
	if r := []rune(msg); len(r) > discordContentLimit {
		msg = string(r[:discordContentLimit-1]) + "…"
	}
	return msg
}
