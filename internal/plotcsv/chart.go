package plotcsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ChartHeader is the header row WriteChart emits.
var ChartHeader = []string{"survey_number", "classification", "owner", "status", "extent"}

type chartColumn int

const (
	colSurvey chartColumn = iota
	colClassification
	colOwner
	colStatus
	colExtent
	colFreeform
)

var chartAliases = map[string]chartColumn{
	"survey_number":       colSurvey,
	"survey_no":           colSurvey,
	"survey":              colSurvey,
	"sy_no":               colSurvey,
	"classification":      colClassification,
	"land_classification": colClassification,
	"class":               colClassification,
	"owner":               colOwner,
	"owner_name":          colOwner,
	"status":              colStatus,
	"extent":              colExtent,
	"area":                colExtent,
	"plot":                colFreeform,
	"details":             colFreeform,
}

// normalizeHeader lowercases a header cell and joins its words with "_".
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	h = strings.NewReplacer(".", " ", "-", " ", "/", " ").Replace(h)
	return strings.Join(strings.Fields(h), "_")
}

// RowError reports a chart or lineage row that could not be read.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string { return "line " + strconv.Itoa(e.Line) + ": " + e.Err.Error() }

func (e RowError) Unwrap() error { return e.Err }

// ReadChart reads an acquisition chart. The first row is treated as a header
// when any of its cells names a known column; otherwise every row is read as
// freeform cells. A row without a survey number column value is joined and
// parsed with ParsePlotCell. Blank rows are skipped.
func ReadChart(r io.Reader) ([]Plot, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	var (
		columns map[chartColumn]int
		plots   []Plot
		first   = true
	)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read chart: %w", err)
		}
		if first {
			first = false
			if cols, ok := chartColumns(record); ok {
				columns = cols
				continue
			}
		}
		line, _ := cr.FieldPos(0)
		plot, skip, err := chartRow(record, columns)
		if err != nil {
			return nil, RowError{Line: line, Err: err}
		}
		if !skip {
			plots = append(plots, plot)
		}
	}
	return plots, nil
}

func chartColumns(header []string) (map[chartColumn]int, bool) {
	cols := make(map[chartColumn]int)
	for i, h := range header {
		if c, ok := chartAliases[normalizeHeader(h)]; ok {
			if _, dup := cols[c]; !dup {
				cols[c] = i
			}
		}
	}
	return cols, len(cols) > 0
}

func chartRow(record []string, columns map[chartColumn]int) (Plot, bool, error) {
	cell := func(c chartColumn) string {
		i, ok := columns[c]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	if survey := cell(colSurvey); survey != "" {
		p := Plot{
			SurveyNumber:   survey,
			Classification: cell(colClassification),
			Owner:          cell(colOwner),
			Status:         strings.Join(strings.Fields(strings.ToLower(cell(colStatus))), " "),
			Extent:         cell(colExtent),
		}
		_, p.KnownStatus = plotStatuses[p.Status]
		return p, false, nil
	}
	var parts []string
	for _, v := range record {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return Plot{}, true, nil
	}
	p, err := ParsePlotCell(strings.Join(parts, " "))
	return p, false, err
}

// WriteChart writes plots under ChartHeader.
func WriteChart(w io.Writer, plots []Plot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ChartHeader); err != nil {
		return err
	}
	for _, p := range plots {
		if err := cw.Write([]string{p.SurveyNumber, p.Classification, p.Owner, p.Status, p.Extent}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
