// Package parser turns rendered species pages into records. All functions
// are pure transformations over HTML; navigation failures are the scraper's
// concern, not this package's.
package parser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"perenual-scraper/models"
)

// Selectors for the perenual species pages. The site is Tailwind-styled, so
// the class lists double as structural markers.
const (
	scientificNameSelector = "h2.italic.main-t-c.my-2"
	infoBlockSelector      = "div.flex.gap-1.capitalize"
	careSectionSelector    = "div.col-span-3.flex.flex-col.space-y-4"
	careLabelSelector      = "h3.font-bold.text-xl.capitalize"
	careValueSelector      = "p.line-clamp-2.whitespace-pre-wrap.break-words"
	entryLinkSelector      = `a[href*="/species/"]`
)

// ExtractRecord parses one species entry page into a record. Missing elements
// are normal: an absent scientific name yields an empty string and an absent
// info block yields no attributes. Only an unparseable document is an error.
func ExtractRecord(html, pageURL string) (*models.SpeciesRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse entry page: %w", err)
	}

	record := &models.SpeciesRecord{
		ScientificName: strings.TrimSpace(doc.Find(scientificNameSelector).First().Text()),
		URL:            pageURL,
	}

	extractInfoBlock(doc, record)
	extractCareDescriptions(doc, record)

	return record, nil
}

// extractInfoBlock reads the key/value info block: each container pairs one
// h3 label with one p value positionally.
func extractInfoBlock(doc *goquery.Document, record *models.SpeciesRecord) {
	doc.Find(infoBlockSelector).Each(func(_ int, block *goquery.Selection) {
		label := NormalizeLabel(block.Find("h3").First().Text())
		value := NormalizeValue(block.Find("p").First().Text())
		if label == "" || value == "" {
			return
		}
		record.Set(label, value)
	})
}

// extractCareDescriptions reads the longer care sections (watering, sunlight,
// pruning). Labels and values are selected separately and paired positionally,
// so a count mismatch means the layout changed and the pairing would be
// unreliable; the whole section is skipped in that case.
func extractCareDescriptions(doc *goquery.Document, record *models.SpeciesRecord) {
	section := doc.Find(careSectionSelector)
	labels := section.Find(careLabelSelector)
	values := section.Find(careValueSelector)
	if labels.Length() == 0 || labels.Length() != values.Length() {
		return
	}

	labels.Each(func(i int, label *goquery.Selection) {
		name := NormalizeLabel(label.Text())
		value := NormalizeValue(values.Eq(i).Text())
		if name == "" || value == "" {
			return
		}
		record.Set(name, value)
	})
}

// EntryLinks returns the absolute URLs of species detail pages linked from a
// listing page, in document order with duplicates removed.
func EntryLinks(html, baseURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	var links []string
	seen := make(map[string]struct{})
	doc.Find(entryLinkSelector).Each(func(_ int, anchor *goquery.Selection) {
		href, ok := anchor.Attr("href")
		if !ok || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		link := abs.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})

	return links, nil
}

// NormalizeLabel converts a display label into a column name: trailing colon
// removed, lowercased, inner spaces replaced with underscores.
func NormalizeLabel(label string) string {
	label = strings.TrimSpace(label)
	label = strings.TrimSuffix(label, ":")
	label = strings.TrimSpace(label)
	label = strings.ToLower(label)
	return strings.ReplaceAll(label, " ", "_")
}

// NormalizeValue trims a display value and collapses newlines to spaces.
func NormalizeValue(value string) string {
	value = strings.ReplaceAll(value, "\r\n", "\n")
	value = strings.ReplaceAll(value, "\n", " ")
	fields := strings.Fields(value)
	return strings.Join(fields, " ")
}
