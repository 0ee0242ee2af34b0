package dataset

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
)

// Merger consolidates every per-page file in Dir into one dataset.
type Merger struct {
	Dir        string
	OutputFile string
	Format     string
}

// MergeStats summarizes one merge run.
type MergeStats struct {
	FilesMerged  int
	FilesSkipped int
	Rows         int
	Columns      int
}

// Run merges all page files. The algorithm is two-pass: the first pass
// collects the ordered union of column names across every readable file
// (first-seen order, scientific_name forced first); the second re-projects
// every row against that union, filling absent cells with empty strings.
// A malformed file is dropped with a warning and contributes nothing; an
// empty input directory produces no output file at all. With unchanged
// inputs, repeat runs produce byte-identical output.
func (m *Merger) Run() (*MergeStats, error) {
	stats := &MergeStats{}

	files, err := ListPageFiles(m.Dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		slog.Info("no page files found, nothing to merge", slog.String("dir", m.Dir))
		return stats, nil
	}

	var columns []string
	seen := make(map[string]struct{})
	contents := make(map[string][][]string, len(files))

	for _, path := range files {
		records, err := readPageFile(path)
		if err != nil {
			stats.FilesSkipped++
			slog.Warn("skipping unreadable page file",
				slog.String("file", path),
				slog.Any("error", err),
			)
			continue
		}
		if len(records) == 0 {
			// No header row at all; contributes nothing.
			continue
		}
		contents[path] = records
		for _, col := range records[0] {
			if _, dup := seen[col]; dup {
				continue
			}
			seen[col] = struct{}{}
			columns = append(columns, col)
		}
	}

	columns = forceScientificNameFirst(columns)
	stats.Columns = len(columns)

	writer, err := NewRowWriter(m.Format, m.OutputFile)
	if err != nil {
		return stats, err
	}

	if err := writer.WriteHeader(columns); err != nil {
		writer.Close()
		return stats, err
	}

	for _, path := range files {
		records, ok := contents[path]
		if !ok {
			continue
		}
		header := records[0]
		for _, record := range records[1:] {
			row := make(map[string]string, len(header))
			for i, col := range header {
				if i < len(record) {
					row[col] = record[i]
				}
			}
			if err := writer.WriteRow(columns, row); err != nil {
				writer.Close()
				return stats, err
			}
			stats.Rows++
		}
		stats.FilesMerged++
	}

	if err := writer.Close(); err != nil {
		return stats, err
	}
	return stats, nil
}

// readPageFile loads a whole page file so a parse error anywhere in it drops
// the file's entire contribution rather than a prefix of its rows.
func readPageFile(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open page file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read page file: %w", err)
	}
	return records, nil
}

func forceScientificNameFirst(columns []string) []string {
	for i, col := range columns {
		if col != ColumnScientificName {
			continue
		}
		if i == 0 {
			return columns
		}
		reordered := make([]string, 0, len(columns))
		reordered = append(reordered, ColumnScientificName)
		reordered = append(reordered, columns[:i]...)
		reordered = append(reordered, columns[i+1:]...)
		return reordered
	}
	return columns
}
