// Package models defines data structures for the scraper.
package models

// Attribute is one labeled value from a species page. Names are already
// normalized (lowercase, underscores) by the extractor.
type Attribute struct {
	Name  string
	Value string
}

// SpeciesRecord represents one species entry. There is no fixed schema:
// different entry pages expose different attribute sets, so attributes are
// kept as an ordered list in the order they were found on the page.
type SpeciesRecord struct {
	ScientificName string
	URL            string
	Attributes     []Attribute
}

// Set appends an attribute, overwriting the value if the name was already
// seen so the first-seen position is preserved.
func (r *SpeciesRecord) Set(name, value string) {
	for i := range r.Attributes {
		if r.Attributes[i].Name == name {
			r.Attributes[i].Value = value
			return
		}
	}
	r.Attributes = append(r.Attributes, Attribute{Name: name, Value: value})
}

// Get returns the value for name and whether it is present.
func (r *SpeciesRecord) Get(name string) (string, bool) {
	for _, a := range r.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// PageResult holds the records extracted from one listing page together with
// the entries that had to be skipped.
type PageResult struct {
	Page    int
	Records []*SpeciesRecord
	Skipped []SkippedEntry
}

// SkippedEntry records a single entry that failed without aborting its page.
type SkippedEntry struct {
	URL    string
	Reason string
}

// ScrapeResult summarizes one scrape run across the configured page range.
type ScrapeResult struct {
	PagesScraped   int
	PagesSkipped   int
	SkippedPages   []int
	EntriesScraped int
	EntriesSkipped int
	ErrorsByType   map[string]int
}
