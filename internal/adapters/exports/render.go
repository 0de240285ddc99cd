package exports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"landledger/internal/plotcsv"
	"landledger/pkg/domain"
)

// table is a built report: a row count, a CSV writer and the value encoded
// for JSON artifacts.
type table struct {
	rows     int
	writeCSV func(io.Writer) error
	value    any
}

func (t table) render(f Format) ([]byte, string, error) {
	switch f {
	case FormatCSV:
		var buf bytes.Buffer
		if err := t.writeCSV(&buf); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "text/csv", nil
	case FormatJSON:
		payload, err := json.MarshalIndent(t.value, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("marshal json: %w", err)
		}
		return payload, "application/json", nil
	default:
		return nil, "", fmt.Errorf("unsupported export format %s", f)
	}
}

func (w *Worker) build(ctx context.Context, projectID string, report Report) (table, error) {
	switch report {
	case ReportLineage:
		tree, err := w.src.Lineage(ctx, projectID)
		if err != nil {
			return table{}, err
		}
		entries := plotcsv.FlattenLineage(tree)
		return table{
			rows:     len(entries),
			writeCSV: func(out io.Writer) error { return plotcsv.WriteLineage(out, entries) },
			value:    tree,
		}, nil
	case ReportAcquisition:
		tree, err := w.src.Lineage(ctx, projectID)
		if err != nil {
			return table{}, err
		}
		statuses, err := w.src.ListAcquisitionStatuses(ctx, projectID)
		if err != nil {
			return table{}, err
		}
		plots := plotcsv.BuildChart(tree, statuses)
		return table{
			rows:     len(plots),
			writeCSV: func(out io.Writer) error { return plotcsv.WriteChart(out, plots) },
			value:    acquisitionJSON(plots, statuses),
		}, nil
	case ReportTransactions:
		recs, err := w.src.ListTransactions(ctx, projectID)
		if err != nil {
			return table{}, err
		}
		return table{
			rows:     len(recs),
			writeCSV: func(out io.Writer) error { return writeTransactions(out, recs) },
			value:    recs,
		}, nil
	case ReportFinancialTransactions:
		recs, err := w.src.ListFinancialTransactions(ctx, projectID)
		if err != nil {
			return table{}, err
		}
		return table{
			rows:     len(recs),
			writeCSV: func(out io.Writer) error { return writeFinancialTransactions(out, recs) },
			value:    recs,
		}, nil
	default:
		return table{}, fmt.Errorf("unknown report %q", report)
	}
}

type acquisitionRow struct {
	plotcsv.Plot
	Stage       domain.AcquisitionStage   `json:"stage,omitempty"`
	Acquisition *domain.AcquisitionStatus `json:"acquisition,omitempty"`
}

func acquisitionJSON(plots []plotcsv.Plot, statuses []domain.AcquisitionStatus) []acquisitionRow {
	bySurvey := make(map[string]domain.AcquisitionStatus, len(statuses))
	for _, s := range statuses {
		bySurvey[s.SurveyNumber] = s
	}
	out := make([]acquisitionRow, 0, len(plots))
	for _, p := range plots {
		row := acquisitionRow{Plot: p}
		if s, ok := bySurvey[p.SurveyNumber]; ok {
			row.Stage = s.Stage()
			row.Acquisition = &s
		}
		out = append(out, row)
	}
	return out
}

var (
	transactionHeader = []string{"id", "owner", "source", "mode", "year", "document_number", "amount", "purpose", "created_at"}
	financialHeader   = []string{"id", "survey_number", "payee", "mode", "amount", "purpose", "paid_on", "created_at"}
)

func writeTransactions(w io.Writer, recs []domain.TransactionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(transactionHeader); err != nil {
		return err
	}
	for _, r := range recs {
		year := ""
		if r.Year != 0 {
			year = strconv.Itoa(r.Year)
		}
		row := []string{r.ID, r.Owner, r.Source, string(r.Mode), year, r.DocumentNumber, r.Amount.String(), r.Purpose, formatTime(r.CreatedAt)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeFinancialTransactions(w io.Writer, recs []domain.FinancialTransaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(financialHeader); err != nil {
		return err
	}
	for _, r := range recs {
		paidOn := ""
		if !r.PaidOn.IsZero() {
			paidOn = r.PaidOn.UTC().Format(time.DateOnly)
		}
		row := []string{r.ID, r.SurveyNumber, r.Payee, string(r.Mode), r.Amount.String(), r.Purpose, paidOn, formatTime(r.CreatedAt)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
