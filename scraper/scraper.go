// Package scraper walks the configured listing-page range through a single
// browser session and persists one raw file per page.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"os"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"perenual-scraper/config"
	"perenual-scraper/dataset"
	"perenual-scraper/models"
	"perenual-scraper/parser"
)

// Navigator renders a page and returns its DOM as HTML. *browser.Session is
// the production implementation; tests substitute an in-memory fake.
type Navigator interface {
	Navigate(ctx context.Context, url string) (string, error)
}

// Scraper drives sequential navigation across [StartPage, EndPage] inclusive.
// Exactly one navigation is in flight at a time: the Navigator owns a single
// tab that every page and entry reuses.
type Scraper struct {
	cfg     *config.Config
	nav     Navigator
	seen    *lru.Cache[string, struct{}]
	rng     *rand.Rand
	Metrics *Metrics
}

// New builds a scraper around an already-launched Navigator.
func New(cfg *config.Config, nav Navigator) (*Scraper, error) {
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	seen, err := lru.New[string, struct{}](cfg.DedupeSize)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}
	return &Scraper{
		cfg:     cfg,
		nav:     nav,
		seen:    seen,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		Metrics: NewMetrics(),
	}, nil
}

// Run scrapes every page in the configured range. Entry and listing failures
// are absorbed into the result; the returned error is reserved for problems
// with no smaller recovery unit than the run itself, such as an unwritable
// output directory.
func (s *Scraper) Run(ctx context.Context) (*models.ScrapeResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := os.MkdirAll(s.cfg.RawDir, 0o755); err != nil {
		return nil, fmt.Errorf("create raw directory: %w", err)
	}

	result := &models.ScrapeResult{ErrorsByType: make(map[string]int)}

	for page := s.cfg.StartPage; page <= s.cfg.EndPage; page++ {
		if ctx.Err() != nil {
			slog.Info("run cancelled", slog.Int("page", page))
			break
		}

		path := dataset.PageFilePath(s.cfg.RawDir, page)
		if s.cfg.SkipExisting {
			if _, err := os.Stat(path); err == nil {
				slog.Info("page already scraped, skipping", slog.Int("page", page))
				continue
			}
		}

		pageResult, err := s.scrapePage(ctx, page)
		if err != nil {
			// Listing navigation failed: the whole page is skipped and
			// the loop moves on. One bad listing must not end the run.
			s.recordError(result, err)
			s.Metrics.IncPage("skipped")
			result.PagesSkipped++
			result.SkippedPages = append(result.SkippedPages, page)
			slog.Warn("listing page skipped",
				slog.Int("page", page),
				slog.Any("error", err),
			)
			continue
		}

		// Persist before touching page+1 so an interruption loses at most
		// the in-flight page.
		if err := dataset.WritePageFile(path, pageResult.Records); err != nil {
			return result, fmt.Errorf("write page %d: %w", page, err)
		}

		s.Metrics.IncPage("scraped")
		result.PagesScraped++
		result.EntriesScraped += len(pageResult.Records)
		result.EntriesSkipped += len(pageResult.Skipped)
		for _, skipped := range pageResult.Skipped {
			result.ErrorsByType[skipped.Reason]++
		}
		slog.Info("page saved",
			slog.Int("page", page),
			slog.String("file", path),
			slog.Int("records", len(pageResult.Records)),
			slog.Int("skipped_entries", len(pageResult.Skipped)),
		)
	}

	return result, nil
}

// scrapePage processes one listing page: enumerate entry links, visit each,
// and collect the extracted records. Only a listing-level navigation failure
// is returned as an error; entry failures end up in Skipped.
func (s *Scraper) scrapePage(ctx context.Context, page int) (*models.PageResult, error) {
	listingHTML, err := s.navigate(ctx, s.listingURL(page))
	if err != nil {
		return nil, err
	}

	links, err := parser.EntryLinks(listingHTML, s.cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	slog.Debug("listing enumerated", slog.Int("page", page), slog.Int("links", len(links)))

	result := &models.PageResult{Page: page}
	for _, link := range links {
		if ctx.Err() != nil {
			break
		}
		if _, dup := s.seen.Get(link); dup {
			slog.Debug("entry already visited", slog.String("url", link))
			continue
		}
		s.seen.Add(link, struct{}{})

		s.sleep(ctx)

		record, err := s.scrapeEntry(ctx, link)
		if err != nil {
			classified := classifyError(err)
			label := errorTypeLabel(classified)
			s.Metrics.IncEntry("skipped")
			s.Metrics.IncError(label)
			result.Skipped = append(result.Skipped, models.SkippedEntry{
				URL:    link,
				Reason: label,
			})
			slog.Warn("entry skipped",
				slog.String("url", link),
				slog.String("reason", label),
				slog.Any("error", err),
			)
			continue
		}

		s.Metrics.IncEntry("scraped")
		result.Records = append(result.Records, record)
		slog.Debug("entry extracted",
			slog.String("url", link),
			slog.String("scientific_name", record.ScientificName),
			slog.Int("attributes", len(record.Attributes)),
		)
	}

	return result, nil
}

func (s *Scraper) scrapeEntry(ctx context.Context, link string) (*models.SpeciesRecord, error) {
	html, err := s.navigate(ctx, link)
	if err != nil {
		return nil, err
	}
	return parser.ExtractRecord(html, link)
}

func (s *Scraper) navigate(ctx context.Context, url string) (string, error) {
	start := time.Now()
	html, err := s.nav.Navigate(ctx, url)
	s.Metrics.ObserveNavigation(time.Since(start))
	return html, err
}

func (s *Scraper) recordError(result *models.ScrapeResult, err error) {
	label := errorTypeLabel(classifyError(err))
	result.ErrorsByType[label]++
	s.Metrics.IncError(label)
}

func (s *Scraper) listingURL(page int) string {
	return s.cfg.BaseURL + "?page=" + strconv.Itoa(page)
}

// sleep waits a randomized delay between requests so the run does not hit
// the site at machine-regular intervals.
func (s *Scraper) sleep(ctx context.Context) {
	if s.cfg.MaxDelay <= 0 {
		return
	}
	delay := s.cfg.MinDelay
	if jitter := s.cfg.MaxDelay - s.cfg.MinDelay; jitter > 0 {
		delay += time.Duration(s.rng.Int63n(int64(jitter)))
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
