// Package dataset persists scraped records as delimited files and merges
// the per-page files into one consolidated output.
package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"perenual-scraper/models"
)

// ColumnScientificName is forced to the front of every persisted file.
const ColumnScientificName = "scientific_name"

// ColumnURL holds the entry page address.
const ColumnURL = "url"

var pageFilePattern = regexp.MustCompile(`^page_(\d+)\.csv$`)

// PageFilePath returns the raw file path for a listing page index.
func PageFilePath(dir string, page int) string {
	return filepath.Join(dir, fmt.Sprintf("page_%d.csv", page))
}

// WritePageFile writes one listing page's records to path, replacing any
// previous run's file. Records have no fixed schema, so the header is the
// first-seen union of the page's attribute names with scientific_name first.
// An empty record list still produces a header-only file.
func WritePageFile(path string, records []*models.SpeciesRecord) error {
	columns := pageColumns(records)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create page file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(columns); err != nil {
		f.Close()
		return fmt.Errorf("write page header: %w", err)
	}

	for _, record := range records {
		row := make([]string, len(columns))
		for i, col := range columns {
			switch col {
			case ColumnScientificName:
				row[i] = record.ScientificName
			case ColumnURL:
				row[i] = record.URL
			default:
				row[i], _ = record.Get(col)
			}
		}
		if err := writer.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("write page row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush page file: %w", err)
	}
	return f.Close()
}

func pageColumns(records []*models.SpeciesRecord) []string {
	columns := []string{ColumnScientificName}
	if len(records) == 0 {
		return columns
	}

	columns = append(columns, ColumnURL)
	seen := map[string]struct{}{ColumnScientificName: {}, ColumnURL: {}}
	for _, record := range records {
		for _, attr := range record.Attributes {
			if _, dup := seen[attr.Name]; dup {
				continue
			}
			seen[attr.Name] = struct{}{}
			columns = append(columns, attr.Name)
		}
	}
	return columns
}

// ListPageFiles returns the raw page files in dir ordered by page number so
// downstream output is deterministic regardless of directory iteration order.
func ListPageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read raw directory: %w", err)
	}

	type pageFile struct {
		page int
		path string
	}
	var files []pageFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := pageFilePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		page, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		files = append(files, pageFile{page: page, path: filepath.Join(dir, entry.Name())})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].page < files[j].page })

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}
