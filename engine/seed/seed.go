// Package seed reads the list of organization names a crawl starts from.
package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/WessleyAI/orggraph/engine/domain"
)

// Column is the header holding organization names.
const Column = "Name"

// ReadNames reads the Name column of the CSV file at path. Blank names are
// skipped. A positive limit keeps only the first limit names. Every failure
// wraps domain.ErrInputFailure.
func ReadNames(path string, limit int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, inputErr("open %s: %w", path, err)
	}
	defer f.Close()

	names, err := Parse(f, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return names, nil
}

// Parse reads names from CSV data in r. See ReadNames.
func Parse(r io.Reader, limit int) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, inputErr("empty file")
	}
	if err != nil {
		return nil, inputErr("read header: %w", err)
	}
	col := findColumn(header)
	if col < 0 {
		return nil, inputErr("no %q column in header %q", Column, header)
	}

	var names []string
	for {
		if limit > 0 && len(names) >= limit {
			break
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, inputErr("read row: %w", err)
		}
		if col >= len(rec) {
			continue
		}
		name := strings.TrimSpace(rec[col])
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// findColumn looks for an exact header match first, then a case-insensitive one.
func findColumn(header []string) int {
	clean := make([]string, len(header))
	for i, h := range header {
		clean[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	for i, h := range clean {
		if h == Column {
			return i
		}
	}
	for i, h := range clean {
		if strings.EqualFold(h, Column) {
			return i
		}
	}
	return -1
}

func inputErr(format string, args ...any) error {
	return fmt.Errorf("seed: %w: %w", domain.ErrInputFailure, fmt.Errorf(format, args...))
}
