// Package htmlutil is a small library of pure functions over a parsed DOM
// (spec.md §4.2), built on goquery. It knows nothing about AiSEG2 page
// layout; that selector knowledge belongs to the collectors in
// internal/collector.
package htmlutil

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Parse parses raw HTML bytes into a goquery document.
func Parse(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(string(body)))
}

// SelectText returns the trimmed text of the first node matching selector,
// and false if no node matches.
func SelectText(doc *goquery.Document, selector string) (string, bool) {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(sel.Text()), true
}

// SelectAllText returns the trimmed text of every node matching selector,
// in document order.
func SelectAllText(doc *goquery.Document, selector string) []string {
	var out []string
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, strings.TrimSpace(sel.Text()))
	})
	return out
}

// unitSuffixes are stripped from the tail of a numeric string before
// parsing, longest first so "kWh" isn't partially matched by a shorter
// suffix sharing a prefix.
var unitSuffixes = []string{"kWh", "℃", "%", "W"}

// ParseNumeric strips thousands separators, surrounding whitespace, and a
// known unit suffix (kWh, W, ℃, %), then parses the remainder as a float.
// It returns false (not an error) when the input has no parseable number,
// matching the "tolerant parsing" requirement in spec.md §4.3: callers skip
// and log, they don't fail the whole collect().
func ParseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	for _, suffix := range unitSuffixes {
		if strings.HasSuffix(s, suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
			break
		}
	}
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "-" || s == "--" {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
