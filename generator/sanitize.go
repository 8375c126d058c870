package generator

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	wrapperTag = regexp.MustCompile(`(?i)<!doctype[^>]*>|</?(html|head|meta|title|link|body|script|style)\b[^>]*>`)
	codeFence  = regexp.MustCompile("(?m)^[ \t]*```[A-Za-z]*[ \t]*(\r?\n|$)")
	anyTag     = regexp.MustCompile(`<[A-Za-z][^>]*>`)
)

// markdown renderer for replies that come back as Markdown instead of HTML
var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// Sanitize strips document level tags and code fences so the result can be
// embedded in a post body. Stripping repeats until nothing changes, so
// Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(s string) string {
	for {
		next := strings.TrimSpace(codeFence.ReplaceAllString(wrapperTag.ReplaceAllString(s, ""), ""))
		if next == s {
			return next
		}
		s = next
	}
}

func toHTML(raw string) (string, error) {
	raw = strings.TrimSpace(codeFence.ReplaceAllString(raw, ""))
	if raw == "" || anyTag.MatchString(raw) {
		return raw, nil
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(raw), &buf); err != nil {
		return "", fmt.Errorf("render markdown reply: %w", err)
	}
	return buf.String(), nil
}
