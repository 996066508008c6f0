// scraper/renderer.go
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"

	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
)

// Renderer loads a results page in a real browser and returns its visible
// text. Failures are *models.RenderError and match models.ErrRenderFailure.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

type HTTPRendererOptions struct {
	BaseURL       string
	Timeout       time.Duration
	Wait          time.Duration
	Selector      string
	UserAgent     string
	MinTextLength int
}

// HTTPRenderer drives a headless-browser render service over HTTP
// (POST {base}/content, response body is the rendered HTML).
type HTTPRenderer struct {
	client *resty.Client
	opts   HTTPRendererOptions
}

type renderRequest struct {
	URL            string `json:"url"`
	WaitForTimeout int64  `json:"waitForTimeout,omitempty"`
	UserAgent      string `json:"userAgent,omitempty"`
}

func NewHTTPRenderer(opts HTTPRendererOptions) *HTTPRenderer {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	client.SetHeader("content-type", "application/json")
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	return &HTTPRenderer{client: client, opts: opts}
}

func (r *HTTPRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	slog.DebugContext(ctx, "Scraper: rendering page", "url", pageURL)

	res, err := r.client.R().
		SetContext(ctx).
		SetBody(renderRequest{
			URL:            pageURL,
			WaitForTimeout: r.opts.Wait.Milliseconds(),
			UserAgent:      r.opts.UserAgent,
		}).
		Post("/content")
	if err != nil {
		return "", &models.RenderError{URL: pageURL, Reason: "render service request failed", Err: err}
	}
	if res.StatusCode() >= 400 {
		return "", &models.RenderError{URL: pageURL, Reason: fmt.Sprintf("render service returned status %d", res.StatusCode())}
	}

	text, err := PageText(string(res.Body()), r.opts.Selector)
	if err != nil {
		return "", &models.RenderError{URL: pageURL, Reason: "unreadable page", Err: err}
	}
	if n := utf8.RuneCountInString(text); n < r.opts.MinTextLength {
		return "", &models.RenderError{URL: pageURL, Reason: fmt.Sprintf("insufficient content (%d chars)", n)}
	}
	return text, nil
}
