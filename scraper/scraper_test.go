package scraper

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"testing"

	"perenual-scraper/config"
	"perenual-scraper/dataset"
)

const testBaseURL = "http://example.test/species-db"

// fakeNavigator serves canned HTML per URL in place of a live browser
// session. URLs without a canned page fail the way Chrome reports an
// unreachable host.
type fakeNavigator struct {
	mu         sync.Mutex
	pages      map[string]string
	errs       map[string]error
	visits     []string
	onNavigate func(url string)
}

func (f *fakeNavigator) Navigate(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	f.visits = append(f.visits, url)
	f.mu.Unlock()

	if f.onNavigate != nil {
		f.onNavigate(url)
	}
	if err, ok := f.errs[url]; ok {
		return "", err
	}
	html, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("navigate %s: net::ERR_NAME_NOT_RESOLVED", url)
	}
	return html, nil
}

func (f *fakeNavigator) visitCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, v := range f.visits {
		if v == url {
			count++
		}
	}
	return count
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		BaseURL:    testBaseURL,
		StartPage:  1,
		EndPage:    1,
		RawDir:     t.TempDir(),
		DedupeSize: 100,
	}
}

func listingURLFor(page int) string {
	return fmt.Sprintf("%s?page=%d", testBaseURL, page)
}

func entryURLFor(id int) string {
	return fmt.Sprintf("%s/species/%d", testBaseURL, id)
}

func buildListing(entryIDs ...int) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, id := range entryIDs {
		fmt.Fprintf(&b, `<a href="%s/species/%d">entry %d</a>`, testBaseURL, id, id)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func buildEntry(name string, attrs [][2]string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, `<h2 class="italic main-t-c my-2">%s</h2>`, name)
	for _, pair := range attrs {
		fmt.Fprintf(&b, `<div class="flex gap-1 capitalize"><h3>%s</h3><p>%s</p></div>`, pair[0], pair[1])
	}
	b.WriteString("</body></html>")
	return b.String()
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return records
}

func TestRunWritesFilePerPage(t *testing.T) {
	cfg := testConfig(t)
	cfg.EndPage = 2

	nav := &fakeNavigator{pages: map[string]string{
		listingURLFor(1): buildListing(10, 11),
		listingURLFor(2): buildListing(20),
		entryURLFor(10):  buildEntry("Abies alba", [][2]string{{"Cycle", "Perennial"}}),
		entryURLFor(11):  buildEntry("Rosa canina", [][2]string{{"Cycle", "Perennial"}, {"Sunlight", "Full sun"}}),
		entryURLFor(20):  buildEntry("Pinus nigra", nil),
	}}

	s, err := New(cfg, nav)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.PagesScraped != 2 || result.PagesSkipped != 0 {
		t.Fatalf("pages scraped=%d skipped=%d, want 2/0", result.PagesScraped, result.PagesSkipped)
	}
	if result.EntriesScraped != 3 {
		t.Fatalf("entries scraped=%d, want 3", result.EntriesScraped)
	}

	records := readCSV(t, dataset.PageFilePath(cfg.RawDir, 1))
	if len(records) != 3 {
		t.Fatalf("page 1 rows=%d, want header + 2", len(records))
	}
	if records[0][0] != "scientific_name" {
		t.Fatalf("first column = %q, want scientific_name", records[0][0])
	}
	if records[1][0] != "Abies alba" {
		t.Fatalf("row 1 scientific name = %q", records[1][0])
	}
}

func TestRunSkipsFailedListingPage(t *testing.T) {
	cfg := testConfig(t)
	cfg.EndPage = 3

	nav := &fakeNavigator{
		pages: map[string]string{
			listingURLFor(1): buildListing(10),
			listingURLFor(3): buildListing(30),
			entryURLFor(10):  buildEntry("Abies alba", nil),
			entryURLFor(30):  buildEntry("Pinus nigra", nil),
		},
		errs: map[string]error{
			listingURLFor(2): errors.New("navigate: net::ERR_CONNECTION_RESET"),
		},
	}

	s, err := New(cfg, nav)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run should absorb listing failures, got %v", err)
	}

	if result.PagesScraped != 2 || result.PagesSkipped != 1 {
		t.Fatalf("pages scraped=%d skipped=%d, want 2/1", result.PagesScraped, result.PagesSkipped)
	}
	if len(result.SkippedPages) != 1 || result.SkippedPages[0] != 2 {
		t.Fatalf("skipped pages = %v, want [2]", result.SkippedPages)
	}

	if _, err := os.Stat(dataset.PageFilePath(cfg.RawDir, 1)); err != nil {
		t.Fatalf("page_1.csv should exist: %v", err)
	}
	if _, err := os.Stat(dataset.PageFilePath(cfg.RawDir, 3)); err != nil {
		t.Fatalf("page_3.csv should exist: %v", err)
	}
	if _, err := os.Stat(dataset.PageFilePath(cfg.RawDir, 2)); !os.IsNotExist(err) {
		t.Fatalf("page_2.csv should be absent, stat err=%v", err)
	}

	if got := result.ErrorsByType["connection"]; got != 1 {
		t.Fatalf("connection errors = %d, want 1", got)
	}
}

func TestRunSkipsFailedEntryOnly(t *testing.T) {
	cfg := testConfig(t)

	nav := &fakeNavigator{
		pages: map[string]string{
			listingURLFor(1): buildListing(10, 11, 12),
			entryURLFor(10):  buildEntry("Abies alba", nil),
			entryURLFor(12):  buildEntry("Pinus nigra", nil),
		},
		errs: map[string]error{
			entryURLFor(11): context.DeadlineExceeded,
		},
	}

	s, err := New(cfg, nav)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.EntriesScraped != 2 || result.EntriesSkipped != 1 {
		t.Fatalf("entries scraped=%d skipped=%d, want 2/1", result.EntriesScraped, result.EntriesSkipped)
	}

	records := readCSV(t, dataset.PageFilePath(cfg.RawDir, 1))
	if len(records) != 3 {
		t.Fatalf("rows=%d, want header + 2 surviving entries", len(records))
	}
}

func TestRunEmptyListingStillWritesFile(t *testing.T) {
	cfg := testConfig(t)

	nav := &fakeNavigator{pages: map[string]string{
		listingURLFor(1): "<html><body>no entries here</body></html>",
	}}

	s, err := New(cfg, nav)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	records := readCSV(t, dataset.PageFilePath(cfg.RawDir, 1))
	if len(records) != 1 {
		t.Fatalf("rows=%d, want header only", len(records))
	}
}

func TestRunDeduplicatesEntriesAcrossPages(t *testing.T) {
	cfg := testConfig(t)
	cfg.EndPage = 2

	nav := &fakeNavigator{pages: map[string]string{
		listingURLFor(1): buildListing(10),
		listingURLFor(2): buildListing(10),
		entryURLFor(10):  buildEntry("Abies alba", nil),
	}}

	s, err := New(cfg, nav)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := nav.visitCount(entryURLFor(10)); got != 1 {
		t.Fatalf("entry visited %d times, want 1", got)
	}
}

func TestRunSkipExisting(t *testing.T) {
	cfg := testConfig(t)
	cfg.SkipExisting = true

	path := dataset.PageFilePath(cfg.RawDir, 1)
	original := []byte("scientific_name\nPrevious run\n")
	if err := os.WriteFile(path, original, 0o644); err != nil {
		t.Fatalf("seed page file: %v", err)
	}

	nav := &fakeNavigator{pages: map[string]string{
		listingURLFor(1): buildListing(10),
		entryURLFor(10):  buildEntry("Abies alba", nil),
	}}

	s, err := New(cfg, nav)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := nav.visitCount(listingURLFor(1)); got != 0 {
		t.Fatalf("listing visited %d times, want 0 with skip-existing", got)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read page file: %v", err)
	}
	if string(content) != string(original) {
		t.Fatalf("existing file was rewritten")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.EndPage = 3

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nav := &fakeNavigator{pages: map[string]string{
		listingURLFor(1): buildListing(10),
		listingURLFor(2): buildListing(20),
		listingURLFor(3): buildListing(30),
		entryURLFor(10):  buildEntry("Abies alba", nil),
		entryURLFor(20):  buildEntry("Rosa canina", nil),
		entryURLFor(30):  buildEntry("Pinus nigra", nil),
	}}
	// Cancel while page 1's entry is in flight: the page must still be
	// persisted, and no later page may be visited.
	nav.onNavigate = func(url string) {
		if url == entryURLFor(10) {
			cancel()
		}
	}

	s, err := New(cfg, nav)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}

	result, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("cancellation is not a run failure: %v", err)
	}

	if result.PagesScraped != 1 {
		t.Fatalf("pages scraped=%d, want 1", result.PagesScraped)
	}
	if _, err := os.Stat(dataset.PageFilePath(cfg.RawDir, 1)); err != nil {
		t.Fatalf("page_1.csv should survive cancellation: %v", err)
	}
	if _, err := os.Stat(dataset.PageFilePath(cfg.RawDir, 2)); !os.IsNotExist(err) {
		t.Fatalf("page_2.csv should be absent, stat err=%v", err)
	}
	if got := nav.visitCount(listingURLFor(2)); got != 0 {
		t.Fatalf("page 2 visited %d times after cancellation, want 0", got)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil", err: nil, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, expected: "timeout"},
		{name: "op error", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, expected: "connection"},
		{name: "chrome net error", err: errors.New("page load error net::ERR_CONNECTION_RESET"), expected: "connection"},
		{name: "other", err: errors.New("some other error"), expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err)); got != tt.expected {
				t.Fatalf("classifyError(%v) = %q, want %q", tt.err, got, tt.expected)
			}
		})
	}
}
