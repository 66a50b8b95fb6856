package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnreadableInput is the single fatal ingestion error class: the input
// cannot be read at all. Every other anomaly (missing header, bad row) is a
// silent skip.
var ErrUnreadableInput = errors.New("unreadable ledger input")

// Format declares how raw ledger bytes should be parsed.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Parse turns a raw ledger export into an ordered transaction sequence.
func Parse(raw []byte, format Format) ([]Transaction, error) {
	switch format {
	case FormatCSV:
		return ParseDelimited(raw)
	case FormatXLSX:
		return ParseWorkbook(raw)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrUnreadableInput, format)
	}
}

// detectDelimiter picks the delimiter by counting comma vs semicolon
// occurrences in the header line; ties go to comma.
func detectDelimiter(header string) rune {
	if strings.Count(header, ";") > strings.Count(header, ",") {
		return ';'
	}
	return ','
}

// ParseDelimited parses a comma- or semicolon-separated export. The header
// row is the first line; a file whose header has no recognizable identifier
// column yields an empty result, not an error.
func ParseDelimited(raw []byte) ([]Transaction, error) {
	text := decodeText(raw)
	headerLine, _, _ := strings.Cut(text, "\n")

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = detectDelimiter(headerLine)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	headers, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreadableInput, err)
	}

	cm, ok := resolveColumns(headers)
	if !ok {
		return nil, nil
	}

	var txs []Transaction
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // malformed row, skip
		}
		if tx, ok := rowToTransaction(record, cm); ok {
			txs = append(txs, tx)
		}
	}
	return txs, nil
}

// headerScanLimit bounds how deep into a sheet the header row is searched.
const headerScanLimit = 15

// ParseWorkbook parses a multi-sheet XLSX export. Each sheet locates its own
// header row within the first headerScanLimit rows by looking for an
// identifier-column label; sheets without one are skipped.
func ParseWorkbook(raw []byte) ([]Transaction, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableInput, err)
	}
	defer f.Close()

	var txs []Transaction
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		headerIdx := findHeaderRow(rows)
		if headerIdx < 0 {
			continue
		}
		cm, ok := resolveColumns(rows[headerIdx])
		if !ok {
			continue
		}
		for _, cells := range rows[headerIdx+1:] {
			if tx, ok := rowToTransaction(cells, cm); ok {
				txs = append(txs, tx)
			}
		}
	}
	return txs, nil
}

func findHeaderRow(rows [][]string) int {
	limit := len(rows)
	if limit > headerScanLimit {
		limit = headerScanLimit
	}
	for i := 0; i < limit; i++ {
		for _, cell := range rows[i] {
			if isUIDHeader(cell) {
				return i
			}
		}
	}
	return -1
}
