// Package csvfile implements reading and writing of CSV and TSV
// translation tables.
//
// The first column holds the key; every other column is a locale. A
// locale's column is found by exact header match first, then by a trailing
// "(code)" suffix, so a header like "Chinese (Simplified)(zh)" serves the
// locale "zh". The in-place writer touches only the target locale's
// column: other columns keep their cells, key order is preserved, unknown
// translation keys become new rows, and a missing locale column is added.
package csvfile

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/algebras-ai/algebras-cli/resource"
)

// table is the parsed sheet carried for writing.
type table struct {
	header []string
	rows   [][]string
	comma  rune
	locale string
}

// Delimiter returns the field separator for a path: tab for .tsv,
// comma otherwise.
func Delimiter(path string) rune {
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return '\t'
	}
	return ','
}

// localeColumn finds the column index for a locale: exact match first,
// then a trailing "(code)" suffix.
func localeColumn(header []string, locale string) int {
	for i, h := range header {
		if i > 0 && strings.TrimSpace(h) == locale {
			return i
		}
	}
	suffix := "(" + locale + ")"
	for i, h := range header {
		if i > 0 && strings.HasSuffix(strings.TrimSpace(h), suffix) {
			return i
		}
	}
	return -1
}

// ---------------------------------------------------------------------------
// Reading
// ---------------------------------------------------------------------------

// ReadLocale parses one locale's column into a flat resource map. Rows
// with an empty cell in that column are omitted, so they count as missing.
// Duplicate keys produce a warning; the last occurrence wins.
func ReadLocale(path, locale string) (*resource.File, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	r := csv.NewReader(strings.NewReader(string(data)))
	r.Comma = Delimiter(path)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, &resource.ParseError{Path: path, Format: "CSV", Err: err}
	}
	if len(records) == 0 {
		return nil, nil, &resource.ParseError{Path: path, Format: "CSV", Err: fmt.Errorf("empty file")}
	}

	t := &table{header: records[0], rows: records[1:], comma: r.Comma, locale: locale}
	col := localeColumn(t.header, locale)

	var warnings []string
	seen := make(map[string]bool)
	m := resource.NewMap()
	for _, row := range t.rows {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		if seen[row[0]] {
			warnings = append(warnings, fmt.Sprintf("%s: duplicate key %q, last occurrence wins", path, row[0]))
			m.Delete(row[0])
		}
		seen[row[0]] = true
		if col >= 0 && col < len(row) && row[col] != "" {
			m.Set(row[0], row[col])
		}
	}
	return &resource.File{Map: m, Original: t}, warnings, nil
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// WriteInPlace updates the target locale's column for the listed keys.
// The column is created when the header lacks it; keys not present in the
// sheet are appended as new rows, with a warning so the caller can flag
// drift between source file and sheet.
func WriteInPlace(path string, f *resource.File, keys []string) ([]string, error) {
	t, ok := f.Original.(*table)
	if !ok {
		return nil, fmt.Errorf("%s: no original sheet to update", path)
	}
	col := localeColumn(t.header, t.locale)
	if col < 0 {
		t.header = append(t.header, t.locale)
		col = len(t.header) - 1
	}

	rowByKey := make(map[string]int, len(t.rows))
	for i, row := range t.rows {
		if len(row) > 0 {
			rowByKey[row[0]] = i // last occurrence wins, like reading
		}
	}

	var warnings []string
	for _, key := range keys {
		val, okv := f.Map.GetString(key)
		if !okv {
			continue
		}
		i, found := rowByKey[key]
		if !found {
			warnings = append(warnings, fmt.Sprintf("%s: key %q not in sheet, appending new row", path, key))
			row := make([]string, len(t.header))
			row[0] = key
			t.rows = append(t.rows, row)
			i = len(t.rows) - 1
			rowByKey[key] = i
		}
		for len(t.rows[i]) < len(t.header) {
			t.rows[i] = append(t.rows[i], "")
		}
		t.rows[i][col] = val
	}

	return warnings, writeTable(path, t)
}

// WriteFull writes every key of the map into the locale's column.
func WriteFull(path string, f *resource.File) ([]string, error) {
	return WriteInPlace(path, f, f.Map.Flatten().Keys())
}

// Retarget points a carried sheet at another locale's column. A brand-new
// target file borrows the source's parsed sheet, whose locale is the
// source language; without re-keying, every write would land in the
// source column. The sheet is copied so the lender stays untouched.
// Files without a carried sheet are left alone.
func Retarget(f *resource.File, locale string) {
	t, ok := f.Original.(*table)
	if !ok || t.locale == locale {
		return
	}
	clone := &table{
		header: append([]string(nil), t.header...),
		rows:   make([][]string, len(t.rows)),
		comma:  t.comma,
		locale: locale,
	}
	for i, row := range t.rows {
		clone.rows[i] = append([]string(nil), row...)
	}
	f.Original = clone
}

func writeTable(path string, t *table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	w.Comma = t.comma
	if err := w.Write(t.header); err != nil {
		return err
	}
	for _, row := range t.rows {
		for len(row) < len(t.header) {
			row = append(row, "")
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
