package paywall

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// markerSelectors are the DOM constructions that indicate a paywall is
// present in served HTML.
var markerSelectors = []string{
	`[class*="paywall"]`,
	`[class*="premium"]`,
	`[class*="subscribe"]`,
	".article-locked",
	".content-locked",
	".subscription-overlay",
	".premium-content-blocker",
	".blurred-content",
}

// Marker is one detected paywall indicator.
type Marker struct {
	Selector string `json:"selector"`
	Count    int    `json:"count"`
}

// DetectMarkers parses served HTML and reports which paywall markers it
// contains. An HTML parse failure reports no markers.
func DetectMarkers(html string) []Marker {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var markers []Marker
	for _, sel := range markerSelectors {
		if n := doc.Find(sel).Length(); n > 0 {
			markers = append(markers, Marker{Selector: sel, Count: n})
		}
	}
	return markers
}
