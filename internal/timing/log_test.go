package timing

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storyviz/internal/ir"
)

func sampleRecords() []ir.TimingRecord {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return []ir.TimingRecord{
		{BeatID: "a0.s0.b0", Action: "show_widgets", Expected: 1, Measured: 0.001, Mode: ir.ModeNormal, Timestamp: ts},
		{BeatID: "a0.s0.b1", Action: "play_events", Expected: 0.8, Measured: 0.25, Mode: ir.ModeNormal, Beat: 1, Timestamp: ts},
	}
}

func TestLogAppendOnly(t *testing.T) {
	log := NewLog()
	for _, r := range sampleRecords() {
		log.Append(r)
	}
	assert.Equal(t, 2, log.Len())

	records := log.Records()
	records[0].Action = "mutated"
	assert.Equal(t, "show_widgets", log.Records()[0].Action, "Records returns a copy")
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRecords()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, []string{"a0.s0.b1", "0", "0", "1", "play_events", "normal", "0.8", "0.25", "2024-01-02T03:04:05Z"}, rows[2])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleRecords()))

	var decoded []ir.TimingRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, sampleRecords(), decoded)

	buf.Reset()
	require.NoError(t, NewLog().WriteJSON(&buf))
	assert.Equal(t, "[]\n", buf.String())
}

func TestMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	for _, r := range sampleRecords() {
		m.Observe(r)
	}
	m.EventDispatched("enqueue")
	m.EventDispatched("enqueue")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.beats.WithLabelValues("normal", "play_events")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("enqueue")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.expected))

	count, err := testutil.GatherAndCount(reg, "storyviz_beats_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Observe(sampleRecords()[0])
		m.EventDispatched("enqueue")
	})
}
