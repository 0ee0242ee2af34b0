package dataset

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RowWriter consumes the unioned schema and then every projected row.
type RowWriter interface {
	WriteHeader(columns []string) error
	WriteRow(columns []string, row map[string]string) error
	Close() error
}

// NewRowWriter creates the consolidated output writer for a format. The
// jsonl file sits next to the csv path with its extension swapped.
func NewRowWriter(format, filename string) (RowWriter, error) {
	switch strings.ToLower(format) {
	case "csv":
		return newCSVRowWriter(filename)
	case "jsonl":
		return newJSONLRowWriter(jsonlPath(filename))
	case "dual":
		return newDualRowWriter(filename, jsonlPath(filename))
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func jsonlPath(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ".jsonl"
}

type csvRowWriter struct {
	file   *os.File
	writer *csv.Writer
}

func newCSVRowWriter(filename string) (*csvRowWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}
	return &csvRowWriter{file: f, writer: csv.NewWriter(f)}, nil
}

func (cw *csvRowWriter) WriteHeader(columns []string) error {
	if err := cw.writer.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	return nil
}

func (cw *csvRowWriter) WriteRow(columns []string, row map[string]string) error {
	record := make([]string, len(columns))
	for i, col := range columns {
		record[i] = row[col]
	}
	if err := cw.writer.Write(record); err != nil {
		return fmt.Errorf("write csv record: %w", err)
	}
	return nil
}

func (cw *csvRowWriter) Close() error {
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		cw.file.Close()
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

type jsonlRowWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
}

func newJSONLRowWriter(filename string) (*jsonlRowWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create jsonl file: %w", err)
	}
	buffer := bufio.NewWriter(f)
	return &jsonlRowWriter{file: f, writer: buffer, encoder: json.NewEncoder(buffer)}, nil
}

// WriteHeader is a no-op: JSONL rows carry their own keys.
func (jw *jsonlRowWriter) WriteHeader([]string) error {
	return nil
}

// WriteRow emits one object per row, omitting absent cells rather than
// padding them with empty strings.
func (jw *jsonlRowWriter) WriteRow(columns []string, row map[string]string) error {
	obj := make(map[string]string, len(row))
	for _, col := range columns {
		if value, ok := row[col]; ok {
			obj[col] = value
		}
	}
	if err := jw.encoder.Encode(obj); err != nil {
		return fmt.Errorf("encode jsonl record: %w", err)
	}
	return nil
}

func (jw *jsonlRowWriter) Close() error {
	if err := jw.writer.Flush(); err != nil {
		jw.file.Close()
		return fmt.Errorf("flush jsonl writer: %w", err)
	}
	return jw.file.Close()
}

type dualRowWriter struct {
	csv   *csvRowWriter
	jsonl *jsonlRowWriter
}

func newDualRowWriter(csvFilename, jsonlFilename string) (*dualRowWriter, error) {
	cw, err := newCSVRowWriter(csvFilename)
	if err != nil {
		return nil, err
	}
	jw, err := newJSONLRowWriter(jsonlFilename)
	if err != nil {
		cw.Close()
		return nil, err
	}
	return &dualRowWriter{csv: cw, jsonl: jw}, nil
}

func (dw *dualRowWriter) WriteHeader(columns []string) error {
	if err := dw.csv.WriteHeader(columns); err != nil {
		return err
	}
	return dw.jsonl.WriteHeader(columns)
}

func (dw *dualRowWriter) WriteRow(columns []string, row map[string]string) error {
	if err := dw.csv.WriteRow(columns, row); err != nil {
		return err
	}
	return dw.jsonl.WriteRow(columns, row)
}

func (dw *dualRowWriter) Close() error {
	var errs []error
	if err := dw.csv.Close(); err != nil {
		errs = append(errs, fmt.Errorf("csv close failed: %w", err))
	}
	if err := dw.jsonl.Close(); err != nil {
		errs = append(errs, fmt.Errorf("jsonl close failed: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("multiple errors: %v", errs)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
