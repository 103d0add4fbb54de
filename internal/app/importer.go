package app

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"ctf-quiz-service/internal/domain"
)

// Import columns. Header names are matched case-insensitively.
const (
	colCategory      = "category"
	colDifficulty    = "difficulty"
	colContent       = "content"
	colPoints        = "points"
	colOptions       = "options"
	colCorrectOption = "correctoption"
)

var importColumns = []string{colCategory, colDifficulty, colContent, colPoints, colOptions, colCorrectOption}

const optionSeparator = "|"

// ImportRow is the outcome of parsing one CSV record. Exactly one of Draft or Err is meaningful.
type ImportRow struct {
	Line     int
	Content  string
	Category string
	Draft    domain.Question
	Err      error
}

// OK reports whether the row produced a valid draft.
func (r ImportRow) OK() bool { return r.Err == nil }

// ImportError renders the per-row message reported back to admins.
func (r ImportRow) ImportError(reason error) string {
	return fmt.Sprintf("Failed to import row %d: %s: %s", r.Line, r.Content, reason)
}

// ParseImport turns CSV input into per-row drafts without touching storage.
// Only a malformed header fails the whole batch; every other problem is
// attached to its row.
func ParseImport(r io.Reader, variant domain.ImportVariant) ([]ImportRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, domain.Invalid("csv is empty")
	}
	if err != nil {
		return nil, domain.Invalid("read csv header: %v", err)
	}
	index, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	var rows []ImportRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				rows = append(rows, ImportRow{Line: parseErr.StartLine, Err: domain.Invalid("malformed record: %v", parseErr.Err)})
				continue
			}
			return nil, domain.Invalid("read csv: %v", err)
		}
		if blankRecord(record) {
			continue
		}
		line, _ := reader.FieldPos(0)
		rows = append(rows, parseRow(line, record, index, variant))
	}
	return rows, nil
}

func headerIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		index[key] = i
	}
	var missing []string
	for _, col := range importColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, domain.Invalid("csv header missing columns: %s", strings.Join(missing, ", "))
	}
	return index, nil
}

func parseRow(line int, record []string, index map[string]int, variant domain.ImportVariant) ImportRow {
	field := func(col string) string {
		i := index[col]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	row := ImportRow{Line: line, Content: field(colContent), Category: field(colCategory)}
	fail := func(err error) ImportRow {
		row.Err = err
		return row
	}

	if row.Content == "" {
		return fail(domain.Invalid("content is required"))
	}
	if row.Category == "" {
		return fail(domain.Invalid("category is required"))
	}
	difficulty, err := domain.ParseDifficulty(field(colDifficulty))
	if err != nil {
		return fail(err)
	}
	points, err := strconv.Atoi(field(colPoints))
	if err != nil {
		return fail(domain.Invalid("points must be an integer, got %q", field(colPoints)))
	}

	rawOptions := field(colOptions)
	if rawOptions == "" {
		return fail(domain.Invalid("options are required"))
	}
	var texts []string
	for _, opt := range strings.Split(rawOptions, optionSeparator) {
		texts = append(texts, strings.TrimSpace(opt))
	}
	correct, err := correctIndex(texts, field(colCorrectOption), variant)
	if err != nil {
		return fail(err)
	}

	draft := domain.Question{
		Content:      row.Content,
		CategoryName: row.Category,
		Difficulty:   difficulty,
		Points:       points,
		Options:      make([]domain.Option, 0, len(texts)),
	}
	for i, text := range texts {
		draft.Options = append(draft.Options, domain.Option{Content: text, Correct: i == correct})
	}
	if err := draft.Validate(); err != nil {
		return fail(err)
	}
	row.Draft = draft
	return row
}

// correctIndex resolves the CorrectOption cell to an option position.
func correctIndex(options []string, raw string, variant domain.ImportVariant) (int, error) {
	if raw == "" {
		return -1, domain.Invalid("correct option is required")
	}
	if variant == domain.VariantLetter {
		if len(raw) != 1 {
			return -1, domain.Invalid("correct option must be a single letter, got %q", raw)
		}
		idx := int(strings.ToUpper(raw)[0]) - 'A'
		if idx < 0 || idx > 'F'-'A' {
			return -1, domain.Invalid("correct option must be a letter A-F, got %q", raw)
		}
		if idx >= len(options) {
			return -1, domain.Invalid("correct option %q is out of range for %d options", raw, len(options))
		}
		return idx, nil
	}

	match := -1
	for i, opt := range options {
		if opt != raw {
			continue
		}
		if match >= 0 {
			return -1, domain.Invalid("correct option %q matches more than one option", raw)
		}
		match = i
	}
	if match < 0 {
		return -1, domain.Invalid("correct option %q does not match any option", raw)
	}
	return match, nil
}

func blankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
