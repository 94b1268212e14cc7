package series

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

// csvHeader is the on-disk cache layout. Date is RFC3339 UTC.
var csvHeader = []string{"Date", "Open", "High", "Low", "Close", "Volume"}

// WriteCSV renders the series in the cache file format. Invalid values are
// written as empty fields.
func (s Series) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, bar := range s.Bars {
		record := []string{
			bar.Time.UTC().Format(time.RFC3339),
			bar.Open.String(),
			bar.High.String(),
			bar.Low.String(),
			bar.Close.String(),
			bar.Volume.String(),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a series previously written by WriteCSV. Malformed numeric
// fields degrade to invalid values; a malformed Date is an error since the
// time index must stay intact.
func ReadCSV(r io.Reader) (Series, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return Series{}, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) != len(csvHeader) || header[0] != csvHeader[0] {
		return Series{}, fmt.Errorf("unexpected csv header %v", header)
	}

	var bars []Bar
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Series{}, fmt.Errorf("read csv record: %w", err)
		}
		ts, err := time.Parse(time.RFC3339, record[0])
		if err != nil {
			return Series{}, fmt.Errorf("parse csv date %q: %w", record[0], err)
		}
		bars = append(bars, Bar{
			Time:   ts.UTC(),
			Open:   ParseValue(record[1]),
			High:   ParseValue(record[2]),
			Low:    ParseValue(record[3]),
			Close:  ParseValue(record[4]),
			Volume: ParseValue(record[5]),
		})
	}
	return Series{Bars: bars}, nil
}
