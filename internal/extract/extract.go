// Package extract parses rendered map result pages into POI candidates.
//
// The upstream page layout is unversioned and its class names drift, so
// every field is derived through a cascade of selectors ordered from
// high-precision structural signatures down to loose fallbacks. A tier that
// does not match is a normal control-flow outcome, never an error.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// Candidate is a provisionally extracted result-page entry before any
// coordinate fallback is applied. Rating and Reviews stay raw strings;
// normalization belongs to the downstream cleaning stage.
type Candidate struct {
	Name    string
	Link    string
	Rating  string
	Reviews string
}

// nameFallbackLimit caps the last-resort name tier (full card text).
const nameFallbackLimit = 200

// Candidates parses the rendered result page markup and returns up to max
// candidates in page order. Parsing is pure: the same markup always yields
// the same sequence. Cards past the cap are never inspected. A candidate
// with no derivable name at any tier is dropped.
func Candidates(markup string, max int) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse markup")
	}

	cards := doc.Find("div.Nv2PK")
	if cards.Length() == 0 {
		// Layout drift fallback: any place-looking hyperlink with visible
		// text acts as a pseudo-card.
		cards = doc.Find("a[href]").FilterFunction(func(_ int, s *goquery.Selection) bool {
			href, _ := s.Attr("href")
			if !strings.Contains(href, "/place/") && !strings.Contains(href, "/maps") {
				return false
			}
			return strings.TrimSpace(s.Text()) != ""
		})
	}

	out := make([]Candidate, 0, max)
	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if len(out) >= max {
			return false
		}
		c := Candidate{
			Name:    cardName(card),
			Link:    cardLink(card),
			Rating:  cardRating(card),
			Reviews: cardReviews(card),
		}
		if c.Name == "" {
			return true
		}
		out = append(out, c)
		return true
	})

	return out, nil
}

// cardLink returns the card's own href when the card is itself a link,
// otherwise the first nested link's href.
func cardLink(card *goquery.Selection) string {
	if card.Is("a") {
		if href, ok := card.Attr("href"); ok {
			return href
		}
	}
	if href, ok := card.Find("a[href]").First().Attr("href"); ok {
		return href
	}
	return ""
}

// cardName derives the candidate name: accessible label on the card, then
// on a nested link, then known heading elements, then the card's visible
// text truncated to nameFallbackLimit runes.
func cardName(card *goquery.Selection) string {
	if label, ok := card.Attr("aria-label"); ok {
		if name := strings.TrimSpace(label); name != "" {
			return name
		}
	}
	if label, ok := card.Find("a[aria-label]").First().Attr("aria-label"); ok {
		if name := strings.TrimSpace(label); name != "" {
			return name
		}
	}
	for _, sel := range []string{"div.qBF1Pd", "div.fontHeadlineSmall"} {
		if name := strings.TrimSpace(card.Find(sel).First().Text()); name != "" {
			return name
		}
	}

	name := strings.TrimSpace(card.Text())
	if runes := []rune(name); len(runes) > nameFallbackLimit {
		name = string(runes[:nameFallbackLimit])
	}
	return name
}

func cardRating(card *goquery.Selection) string {
	if text := strings.TrimSpace(card.Find("span.MW4etd").First().Text()); text != "" {
		return text
	}
	return strings.TrimSpace(card.Find("span[aria-label]").First().Text())
}

func cardReviews(card *goquery.Selection) string {
	raw := strings.TrimSpace(card.Find("span.UY7F9").First().Text())
	if raw == "" {
		raw = strings.TrimSpace(card.Find("span[aria-hidden]").First().Text())
	}
	return strings.Trim(raw, "()")
}
