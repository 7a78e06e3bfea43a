package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/username/portfoliotracker/src/logger"
	"github.com/username/portfoliotracker/src/models"
)

// CSVParser reads transaction history exports. The expected header is
//
//	type,datetime,fromAsset,fromQuantity,fromPriceUsd,toAsset,toQuantity,toPriceUsd,feesUsd,notes
//
// Column order is taken from the header row, so exports with reordered or
// extra columns still parse.
type CSVParser struct{}

func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

var timestampFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Parse reads the full CSV stream into transactions. Errors name the
// offending line so large imports are debuggable.
func (p *CSVParser) Parse(r io.Reader) ([]models.Transaction, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"type", "datetime", "toasset", "toquantity"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("CSV header missing required column %q", required)
		}
	}

	field := func(record []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var txs []models.Transaction
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", line, err)
		}

		ts, err := parseTimestamp(field(record, "datetime"))
		if err != nil {
			return nil, fmt.Errorf("CSV line %d: %w", line, err)
		}

		tx := models.Transaction{
			Kind:      field(record, "type"),
			Timestamp: ts,
			FromAsset: field(record, "fromasset"),
			ToAsset:   field(record, "toasset"),
			Notes:     field(record, "notes"),
		}
		if tx.FromQuantity, err = parseFloat(field(record, "fromquantity")); err != nil {
			return nil, fmt.Errorf("CSV line %d: fromQuantity: %w", line, err)
		}
		if tx.FromPriceUsd, err = parseFloat(field(record, "frompriceusd")); err != nil {
			return nil, fmt.Errorf("CSV line %d: fromPriceUsd: %w", line, err)
		}
		if tx.ToQuantity, err = parseFloat(field(record, "toquantity")); err != nil {
			return nil, fmt.Errorf("CSV line %d: toQuantity: %w", line, err)
		}
		if tx.ToPriceUsd, err = parseFloat(field(record, "topriceusd")); err != nil {
			return nil, fmt.Errorf("CSV line %d: toPriceUsd: %w", line, err)
		}
		if tx.FeesUsd, err = parseFloat(field(record, "feesusd")); err != nil {
			return nil, fmt.Errorf("CSV line %d: feesUsd: %w", line, err)
		}
		txs = append(txs, tx)
	}

	if logger.L != nil {
		logger.L.Info("Parsed transaction CSV", "rows", len(txs))
	}
	return txs, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty datetime")
	}
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", s)
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}
