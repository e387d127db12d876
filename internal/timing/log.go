package timing

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/roach88/storyviz/internal/ir"
)

// Log is the append-only timing telemetry sink. It is a pure output: nothing
// in execution reads it back.
type Log struct {
	records []ir.TimingRecord
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append adds one record.
func (l *Log) Append(rec ir.TimingRecord) {
	l.records = append(l.records, rec)
}

// Records returns a copy of all records in append order.
func (l *Log) Records() []ir.TimingRecord {
	return slices.Clone(l.records)
}

// Len returns the number of records.
func (l *Log) Len() int {
	return len(l.records)
}

// CSVHeader is the column order of WriteCSV.
var CSVHeader = []string{"beat_id", "act", "shot", "beat", "action", "mode", "expected", "measured", "timestamp"}

// WriteCSV writes records as CSV with a header row.
func WriteCSV(w io.Writer, records []ir.TimingRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.BeatID,
			strconv.Itoa(r.Act),
			strconv.Itoa(r.Shot),
			strconv.Itoa(r.Beat),
			r.Action,
			string(r.Mode),
			strconv.FormatFloat(r.Expected, 'f', -1, 64),
			strconv.FormatFloat(r.Measured, 'f', -1, 64),
			r.Timestamp.UTC().Format(time.RFC3339Nano),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.BeatID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes records as an indented JSON array.
func WriteJSON(w io.Writer, records []ir.TimingRecord) error {
	if records == nil {
		records = []ir.TimingRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// WriteCSV writes the log as CSV.
func (l *Log) WriteCSV(w io.Writer) error { return WriteCSV(w, l.records) }

// WriteJSON writes the log as JSON.
func (l *Log) WriteJSON(w io.Writer) error { return WriteJSON(w, l.records) }
