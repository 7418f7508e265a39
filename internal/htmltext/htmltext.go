// Package htmltext flattens the HTML fragments that search providers embed
// in titles and descriptions into plain text suitable for classification
// prompts and notification messages.
package htmltext

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Flatten strips tags from an HTML fragment and collapses whitespace.
// Plain text passes through unchanged apart from whitespace normalization.
func Flatten(fragment string) string {
	if !strings.ContainsRune(fragment, '<') {
		return collapse(fragment)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapse(fragment)
	}

	return collapse(doc.Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
