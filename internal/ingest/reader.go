// Package ingest reads raffle entry exports and previous run outputs.
package ingest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Sentinel errors for unreadable files. Use errors.Is() to check for them.
var (
	ErrEmptyFile       = errors.New("ingest: file is empty")
	ErrMissingHeader   = errors.New("ingest: missing header row")
	ErrMissingColumn   = errors.New("ingest: required column missing")
	ErrInvalidEncoding = errors.New("ingest: file is not valid UTF-8")
)

// RowError is a data row that was dropped before reaching the pipeline.
type RowError struct {
	// Line is the 1-based line in the file; the header is line 1.
	Line       int
	Identifier string
	Reason     string
}

func (e RowError) Error() string {
	if e.Identifier != "" {
		return fmt.Sprintf("line %d (%s): %s", e.Line, e.Identifier, e.Reason)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// row is one data line keyed by camelized header.
type row struct {
	line   int
	fields map[string]string
}

func (r row) get(key string) string {
	return r.fields[key]
}

func (r row) empty() bool {
	for _, v := range r.fields {
		if v != "" {
			return false
		}
	}
	return true
}

// table is a whole CSV file read into memory. Exports are a few thousand
// rows at most.
type table struct {
	headers []string
	rows    []row
}

func (t table) has(key string) bool {
	for _, h := range t.headers {
		if h == key {
			return true
		}
	}
	return false
}

// pick returns the first of keys present in the header, or keys[0] when
// none is.
func (t table) pick(keys ...string) string {
	for _, k := range keys {
		if t.has(k) {
			return k
		}
	}
	return keys[0]
}

// require returns ErrMissingColumn naming every absent key.
func (t table) require(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if !t.has(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

// readTable strips a UTF-8 BOM, validates the encoding and reads every
// non-empty row.
func readTable(r io.Reader) (table, error) {
	br := bufio.NewReader(r)

	bom, err := br.Peek(3)
	if err != nil && err != io.EOF {
		return table{}, fmt.Errorf("read file: %w", err)
	}
	if len(bom) == 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		_, _ = br.Discard(3)
	}

	data, err := io.ReadAll(br)
	if err != nil {
		return table{}, fmt.Errorf("read file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return table{}, ErrEmptyFile
	}
	if !utf8.Valid(data) {
		return table{}, ErrInvalidEncoding
	}

	cr := csv.NewReader(strings.NewReader(string(data)))
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return table{}, ErrMissingHeader
	}
	if err != nil {
		return table{}, fmt.Errorf("read header: %w", err)
	}

	t := table{headers: make([]string, len(header))}
	for i, h := range header {
		t.headers[i] = Camelize(h)
	}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return t, fmt.Errorf("read row: %w", err)
		}

		line, _ := cr.FieldPos(0)
		rw := row{line: line, fields: make(map[string]string, len(t.headers))}
		for i, key := range t.headers {
			if key == "" {
				continue
			}
			if i < len(record) {
				rw.fields[key] = strings.TrimSpace(record[i])
			} else {
				rw.fields[key] = ""
			}
		}
		if rw.empty() {
			continue
		}
		t.rows = append(t.rows, rw)
	}

	return t, nil
}

// Camelize turns a column title into a lowerCamelCase key:
// "FIRST_NAME" -> "firstName", " REFERRAL ENTRIES" -> "referralEntries",
// "Draft Order #" -> "draftOrder".
func Camelize(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var b strings.Builder
	for i, w := range words {
		w = strings.ToLower(w)
		if i == 0 {
			b.WriteString(w)
			continue
		}
		first, size := utf8.DecodeRuneInString(w)
		b.WriteRune(unicode.ToUpper(first))
		b.WriteString(w[size:])
	}
	return b.String()
}
