// Package ingest reads referring-domain metric exports (CSV or XLSX) into
// domain metric records.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alvmarrod/everest/internal/storage"
	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported export format, expected .csv or .xlsx")
	ErrMissingDomain     = errors.New("export has no referring_domain column")
)

// columnAliases maps normalized export headers to record fields
var columnAliases = map[string]string{
	"referring_domain": "referring_domain",
	"domain":           "referring_domain",
	"domain_rating":    "domain_rating",
	"dr":               "domain_rating",
	"organic_traffic":  "organic_traffic",
	"traffic":          "organic_traffic",
	"live_backlinks":   "live_backlinks",
	"links_to_target":  "live_backlinks",
	"total_backlinks":  "total_backlinks",
	"backlinks":        "total_backlinks",
	"first_seen":       "first_seen",
	"last_updated":     "last_updated",
	"last_seen":        "last_updated",
	"last_check":       "last_updated",
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.DateOnly,
	"01/02/2006",
}

// NormalizeColumn lowercases a header, drops parentheses, percent signs and
// the "desc" marker, and joins words with underscores
// Example: "Domain Rating (desc)" -> domain_rating
func NormalizeColumn(name string) string {
	name = strings.ToLower(name)
	name = strings.NewReplacer("desc", "", "(", "", ")", "", "%", "").Replace(name)
	return strings.Join(strings.Fields(name), "_")
}

// ReadFile parses an export chosen by its file extension
func ReadFile(path string) ([]storage.DomainMetrics, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open export: %w", err)
		}
		defer file.Close()
		return ReadCSV(file)
	case ".xlsx":
		return readXLSX(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// ReadCSV parses a comma separated export with a header row
func ReadCSV(r io.Reader) ([]storage.DomainMetrics, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv export: %w", err)
	}
	return Parse(rows)
}

func readXLSX(path string) ([]storage.DomainMetrics, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook rows: %w", err)
	}
	return Parse(rows)
}

// Parse converts a header row plus data rows into metric records. Rows
// without a domain are skipped; later rows for the same domain win.
func Parse(rows [][]string) ([]storage.DomainMetrics, error) {
	if len(rows) == 0 {
		return nil, ErrMissingDomain
	}

	index := make(map[string]int)
	for i, header := range rows[0] {
		// exports often start with a byte order mark
		header = strings.TrimPrefix(header, "\ufeff")
		if field, ok := columnAliases[NormalizeColumn(header)]; ok {
			if _, seen := index[field]; !seen {
				index[field] = i
			}
		}
	}
	if _, ok := index["referring_domain"]; !ok {
		return nil, ErrMissingDomain
	}

	cell := func(row []string, field string) string {
		i, ok := index[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []storage.DomainMetrics
	position := make(map[string]int)
	for n, row := range rows[1:] {
		domain := strings.ToLower(cell(row, "referring_domain"))
		if domain == "" {
			continue
		}

		m := storage.DomainMetrics{DomainName: domain}
		var err error
		if m.DomainRating, err = parseFloat(cell(row, "domain_rating")); err != nil {
			return nil, fmt.Errorf("row %d domain_rating: %w", n+2, err)
		}
		if m.OrganicTraffic, err = parseInt(cell(row, "organic_traffic")); err != nil {
			return nil, fmt.Errorf("row %d organic_traffic: %w", n+2, err)
		}
		if m.LiveBacklinks, err = parseInt(cell(row, "live_backlinks")); err != nil {
			return nil, fmt.Errorf("row %d live_backlinks: %w", n+2, err)
		}
		if m.TotalBacklinks, err = parseInt(cell(row, "total_backlinks")); err != nil {
			return nil, fmt.Errorf("row %d total_backlinks: %w", n+2, err)
		}
		if m.FirstSeen, err = parseTime(cell(row, "first_seen")); err != nil {
			return nil, fmt.Errorf("row %d first_seen: %w", n+2, err)
		}
		if m.LastUpdated, err = parseTime(cell(row, "last_updated")); err != nil {
			return nil, fmt.Errorf("row %d last_updated: %w", n+2, err)
		}

		if i, ok := position[domain]; ok {
			records[i] = m
			continue
		}
		position[domain] = len(records)
		records = append(records, m)
	}
	return records, nil
}

func parseFloat(s string) (*float64, error) {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseInt(s string) (*int64, error) {
	f, err := parseFloat(s)
	if f == nil || err != nil {
		return nil, err
	}
	v := int64(*f)
	return &v, nil
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", s)
}
