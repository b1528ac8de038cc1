package gridsearch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/RyanBlaney/sonido-sync/algorithms/stats"
)

// reportColumns is the tuple followed by mean, std, median, fraction positive.
const reportColumns = tupleColumns + 4

// Row is one aggregated line of the report
type Row struct {
	Tuple   Tuple         `json:"tuple"`
	Summary stats.Summary `json:"summary"`
}

// Aggregate summarizes every tuple of the table, in table order. Tuples
// without scores are left out.
func Aggregate(table *ResultTable) []Row {
	keys := table.Keys()
	rows := make([]Row, 0, len(keys))
	for _, k := range keys {
		summary, err := stats.Summarize(table.Values(k))
		if err != nil {
			continue
		}
		rows = append(rows, Row{Tuple: k, Summary: summary})
	}
	return rows
}

// WriteCSV writes one headerless line per row.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	for _, row := range rows {
		record := append(row.Tuple.Record(),
			formatFloat(row.Summary.Mean),
			formatFloat(row.Summary.StdDev),
			formatFloat(row.Summary.Median),
			formatFloat(row.Summary.FractionPositive),
		)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %s: %w", row.Tuple, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a report written by WriteCSV. Counts are not stored in the
// report and come back as zero.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = reportColumns

	var rows []Row
	for line := 1; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read report: %w", err)
		}

		t, err := ParseTuple(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		var values [4]float64
		for i := range values {
			v, err := strconv.ParseFloat(record[tupleColumns+i], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line, tupleColumns+i+1, err)
			}
			values[i] = v
		}

		rows = append(rows, Row{
			Tuple: t,
			Summary: stats.Summary{
				Mean:             values[0],
				StdDev:           values[1],
				Median:           values[2],
				FractionPositive: values[3],
			},
		})
	}
	return rows, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
