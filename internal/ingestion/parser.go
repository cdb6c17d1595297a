package ingestion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// parseTable parses an uploaded byte buffer into an ordered sequence of
// header-keyed records. CSV is the default; .xlsx uploads read the
// first sheet.
func parseTable(fileName string, payload []byte) ([]map[string]string, error) {
	var (
		records [][]string
		err     error
	)
	if strings.ToLower(filepath.Ext(fileName)) == ".xlsx" {
		records, err = readExcel(payload)
	} else {
		records, err = readCSV(payload)
	}
	if err != nil {
		return nil, err
	}
	return keyRecords(records)
}

func readCSV(payload []byte) ([][]string, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return records, nil
}

func readExcel(payload []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return rows, nil
}

// keyRecords maps the header row onto each data row. Header names are
// trimmed, lower-cased, with inner spaces collapsed to underscores.
// Blank rows are dropped; ragged rows are padded.
func keyRecords(records [][]string) ([]map[string]string, error) {
	var headers []string
	var rows []map[string]string

	for _, record := range records {
		if isBlankRow(record) {
			continue
		}
		if headers == nil {
			headers = sanitizeHeaders(record)
			continue
		}

		row := make(map[string]string, len(headers))
		for idx, header := range headers {
			if idx < len(record) {
				row[header] = record[idx]
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)
	}

	if headers == nil {
		return nil, errors.New("no header row detected")
	}
	return rows, nil
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	for idx, value := range raw {
		name := strings.ToLower(strings.TrimSpace(value))
		name = strings.Join(strings.Fields(name), "_")
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}
		headers[idx] = name
	}
	return headers
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
