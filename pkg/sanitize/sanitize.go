package sanitize

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	richOnce sync.Once
	rich     *bluemonday.Policy
	strict   = bluemonday.StrictPolicy()
)

func richPolicy() *bluemonday.Policy {
	richOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AllowElements("u", "s", "mark")
		p.RequireNoFollowOnLinks(true)
		p.AddTargetBlankToFullyQualifiedLinks(true)
		rich = p
	})
	return rich
}

// HTML strips unsafe markup from user generated forum content while keeping
// formatting, lists, links and code blocks.
func HTML(input string) string {
	if input == "" {
		return ""
	}
	return strings.TrimSpace(richPolicy().Sanitize(input))
}

// Text removes every tag, leaving escaped plain text. Used for titles.
func Text(input string) string {
	if input == "" {
		return ""
	}
	return strings.TrimSpace(strict.Sanitize(input))
}

// IsBlank reports whether sanitised HTML has no visible text left.
func IsBlank(html string) bool {
	return Text(html) == ""
}
