// notifier/discord.go
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultDiscordAPIBase = "https://discord.com/api/v10"

	// Discord rejects message content longer than this many characters.
	discordMessageLimit = 2000
	discordMaxAttempts  = 3
)

type DiscordOptions struct {
	APIBase   string
	ChannelID string
	Token     string
	Timeout   time.Duration
	// InitialRetryInterval is the first backoff step; zero uses one second.
	InitialRetryInterval time.Duration
}

// Discord posts messages to one channel through the bot REST API.
type Discord struct {
	client    *resty.Client
	channelID string
	retryBase time.Duration
}

func NewDiscord(opts DiscordOptions) *Discord {
	base := opts.APIBase
	if base == "" {
		base = DefaultDiscordAPIBase
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retryBase := opts.InitialRetryInterval
	if retryBase <= 0 {
		retryBase = time.Second
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(base, "/"))
	client.SetTimeout(timeout)
	client.SetHeader("Authorization", "Bot "+opts.Token)
	client.SetHeader("content-type", "application/json")
	client.SetHeader("user-agent", "airplane-ticket-price-tracker/1.0")

	return &Discord{client: client, channelID: opts.ChannelID, retryBase: retryBase}
}

type discordMessage struct {
	Content string `json:"content"`
}

// Send posts message, split into several posts when it exceeds the length
// limit. 429 and 5xx responses are retried with exponential backoff.
func (d *Discord) Send(ctx context.Context, message string) error {
	for i, chunk := range SplitMessage(message, discordMessageLimit) {
		if err := d.post(ctx, chunk); err != nil {
			return fmt.Errorf("discord message part %d: %w", i+1, err)
		}
	}
	slog.InfoContext(ctx, "Notifier: discord message sent", "channel", d.channelID)
	return nil
}

func (d *Discord) post(ctx context.Context, content string) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.retryBase
	policy.MaxElapsedTime = 0

	operation := func() error {
		res, err := d.client.R().
			SetContext(ctx).
			SetBody(discordMessage{Content: content}).
			Post("/channels/" + d.channelID + "/messages")
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}

		status := res.StatusCode()
		switch {
		case status == http.StatusOK || status == http.StatusCreated || status == http.StatusNoContent:
			return nil
		case status == http.StatusTooManyRequests || status >= 500:
			slog.WarnContext(ctx, "Notifier: discord retryable status", "status", status)
			return fmt.Errorf("discord returned status %d", status)
		default:
			return backoff.Permanent(fmt.Errorf("discord returned status %d: %s", status, res.String()))
		}
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(policy, discordMaxAttempts-1), ctx)
	return backoff.Retry(operation, bo)
}

// SplitMessage cuts message into parts of at most limit characters,
// preferring line boundaries.
func SplitMessage(message string, limit int) []string {
	if utf8.RuneCountInString(message) <= limit {
		return []string{message}
	}

	var (
		parts   []string
		current strings.Builder
		size    int
	)
	flush := func() {
		if size > 0 {
			parts = append(parts, strings.TrimRight(current.String(), "\n"))
			current.Reset()
			size = 0
		}
	}

	for _, line := range strings.SplitAfter(message, "\n") {
		n := utf8.RuneCountInString(line)
		if size+n > limit {
			flush()
		}
		for n > limit {
			runes := []rune(line)
			parts = append(parts, string(runes[:limit]))
			line = string(runes[limit:])
			n = len(runes) - limit
		}
		current.WriteString(line)
		size += n
	}
	flush()
	return parts
}
