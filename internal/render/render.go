// Package render converts author-supplied review markup into safe HTML.
//
// Review text is stored raw and rendered at read time: markdown is expanded
// first, then the result is filtered through a strict element allow-list.
// The pipeline is pure (no I/O, no shared state) and idempotent, so already
// sanitized HTML passes through unchanged.
package render

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// allowedElements is the closed set of tags that survive sanitization.
// Anything outside it, script and style included, is stripped with its
// attributes; text content is kept.
var allowedElements = []string{
	"a", "abbr", "b", "i", "blockquote", "code", "em",
	"li", "ol", "ul", "pre", "strong", "p", "br",
	"h1", "h2", "h3", "h4", "hr",
}

// Renderer turns raw review markup into sanitized HTML.
type Renderer struct {
	markdown goldmark.Markdown
	policy   *bluemonday.Policy

	mu sync.Mutex // goldmark.Convert is not safe for concurrent use of one buffer; serialize conversions
}

// New creates a renderer with the review sanitization policy.
func New() *Renderer {
	policy := bluemonday.NewPolicy()
	policy.AllowElements(allowedElements...)
	policy.AllowAttrs("href", "title", "rel").OnElements("a")
	policy.AllowURLSchemes("http", "https", "mailto")
	policy.RequireParseableURLs(true)
	policy.RequireNoFollowOnLinks(true)

	// WithUnsafe lets inline HTML through to the sanitizer instead of
	// escaping it; the policy is the single gate deciding what survives.
	markdown := goldmark.New(
		goldmark.WithExtensions(extension.Linkify),
		goldmark.WithRendererOptions(
			gmhtml.WithHardWraps(),
			gmhtml.WithUnsafe(),
		),
	)

	return &Renderer{
		markdown: markdown,
		policy:   policy,
	}
}

// Render expands markdown in raw and strips everything outside the element
// allow-list. Bare URLs become nofollow anchors. The empty string renders to
// the empty string.
func (r *Renderer) Render(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}

	var buf bytes.Buffer
	r.mu.Lock()
	err := r.markdown.Convert([]byte(raw), &buf)
	r.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}

	return r.policy.Sanitize(buf.String()), nil
}

// Sanitize applies only the allow-list filter, without markdown expansion.
// Used where the input is already HTML.
func (r *Renderer) Sanitize(html string) string {
	return r.policy.Sanitize(html)
}
