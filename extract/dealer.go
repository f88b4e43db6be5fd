package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractDealerName runs the dealer-name cascade. Order matters: structured
// data is most trustworthy, free-text pattern scans are noisiest, and the
// DOM header lookup closes the gap on layouts where nothing else fires.
func (e *Extractor) extractDealerName(p *Page, doc *goquery.Document) string {
	if name := e.dealerFromLinkedData(doc); name != "" {
		return name
	}
	if name := e.dealerFromEmbeddedJSON(p.HTML); name != "" {
		return name
	}
	if name := e.dealerBrandOfLocation(p.HTML); name != "" {
		return name
	}
	if name := e.dealerNearLocation(p.Text); name != "" {
		return name
	}
	return e.dealerFromHeader(doc)
}

// dealerFromLinkedData looks for a seller name in JSON-LD blocks. Malformed
// blocks are skipped silently.
func (e *Extractor) dealerFromLinkedData(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	var found string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		if name := sellerName(data, 0); e.acceptSeller(name) {
			found = name
			return false
		}
		return true
	})
	return found
}

// sellerName walks decoded JSON-LD for a seller (or offer-seller) name.
func sellerName(data any, depth int) string {
	if depth > 6 {
		return ""
	}
	switch v := data.(type) {
	case map[string]any:
		if seller, ok := v["seller"].(map[string]any); ok {
			if name, ok := seller["name"].(string); ok {
				return name
			}
		}
		for _, key := range []string{"offers", "@graph"} {
			if nested, ok := v[key]; ok {
				if name := sellerName(nested, depth+1); name != "" {
					return name
				}
			}
		}
	case []any:
		for _, item := range v {
			if name := sellerName(item, depth+1); name != "" {
				return name
			}
		}
	}
	return ""
}

func (e *Extractor) acceptSeller(name string) bool {
	name = strings.TrimSpace(name)
	if len(name) <= 5 {
		return false
	}
	_, generic := genericSellerNames[strings.ToLower(name)]
	return !generic
}

// dealerFromEmbeddedJSON scans page scripts for dealer/seller name keys.
// Besides the generic-name rejection, candidates must co-occur with "of" or
// a brand token, which weeds out marketplace strings.
func (e *Extractor) dealerFromEmbeddedJSON(html string) string {
	for _, re := range dealerKeyRes {
		for _, m := range re.FindAllStringSubmatch(html, -1) {
			name := strings.TrimSpace(m[1])
			if !e.acceptSeller(name) {
				continue
			}
			if e.brandWord.MatchString(name) {
				return name
			}
		}
	}
	return ""
}

// dealerBrandOfLocation matches "<Brand> of <Location>" anywhere in the markup.
func (e *Extractor) dealerBrandOfLocation(html string) string {
	m := e.brandOfRe.FindStringSubmatch(html)
	if len(m) < 3 {
		return ""
	}
	return m[1] + " of " + m[2]
}

// dealerNearLocation scans visible text around a detected city/state token.
// A "<Brand> of <City>" hit in that window wins; otherwise a constrained
// "<Location> <Brand>" scan over the top of the page applies the stop-word
// rejection to suppress vehicle-feature phrases.
func (e *Extractor) dealerNearLocation(text string) string {
	if m := cityStateRe.FindStringSubmatch(text); len(m) >= 2 {
		city := m[1]
		if pos := strings.Index(text, city); pos >= 0 {
			start := pos - 200
			if start < 0 {
				start = 0
			}
			end := pos + 50
			if end > len(text) {
				end = len(text)
			}
			window := text[start:end]
			if hit := e.brandOfRe.FindStringSubmatch(window); len(hit) >= 3 && hit[2] == city {
				return hit[1] + " of " + hit[2]
			}
		}
	}

	head := text
	if len(head) > 5000 {
		head = head[:5000]
	}
	for _, m := range e.locBrand.FindAllStringSubmatch(head, -1) {
		candidate := m[1] + " " + m[2]
		if !strings.Contains(m[1], " ") {
			continue
		}
		if len(candidate) < 8 || len(candidate) > 100 {
			continue
		}
		if e.hasStopWord(candidate) {
			continue
		}
		return candidate
	}
	return ""
}

// dealerFromHeader reads the first text span of the dealer header container.
func (e *Extractor) dealerFromHeader(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	name := strings.TrimSpace(doc.Find(`div[data-test="vdpDealerHeader"] span`).First().Text())
	if len(name) < 5 || len(name) > 80 || e.hasStopWord(name) {
		return ""
	}
	return name
}

func (e *Extractor) hasStopWord(candidate string) bool {
	lower := strings.ToLower(candidate)
	for _, w := range e.stopWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
