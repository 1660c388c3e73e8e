package oracle

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/matchbook/market-engine/internal/model"
)

// maxRenderedLen caps the text embedded into a prompt. Result pages carry
// the score in the first screenful; the rest is navigation and ads.
const maxRenderedLen = 12000

var (
	scriptRe = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]+>`)
	spaceRe  = regexp.MustCompile(`[ \t]+`)
	blankRe  = regexp.MustCompile(`\n{3,}`)
)

// Fetcher renders a resolution source URL to plain text for prompt
// embedding. Implements SourceRenderer.
type Fetcher struct {
	client *resty.Client
}

// NewFetcher creates a source fetcher with sane retry behavior.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("User-Agent", "market-engine/1.0")
	return &Fetcher{client: client}
}

// Render fetches url and reduces the body to whitespace-normalized text,
// truncated to a prompt-friendly length.
func (f *Fetcher) Render(ctx context.Context, url string) (string, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", fmt.Errorf("%w: fetch resolution source: %v", model.ErrOracle, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: resolution source returned %d", model.ErrOracle, resp.StatusCode())
	}

	text := htmlToText(string(resp.Body()))
	if len(text) > maxRenderedLen {
		text = text[:maxRenderedLen]
	}
	return text, nil
}

// htmlToText strips markup and collapses whitespace. Crude but sufficient:
// the oracle reads prose, not layout.
func htmlToText(body string) string {
	s := scriptRe.ReplaceAllString(body, " ")
	s = tagRe.ReplaceAllString(s, "\n")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = spaceRe.ReplaceAllString(s, " ")
	s = blankRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
