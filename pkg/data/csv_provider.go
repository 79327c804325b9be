// Package data loads and reshapes historical candle series for replay.
package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

// CSVProvider reads candles from CSV files with the layout
// timestamp,open,high,low,close,volume. Timestamps are RFC3339, unix
// seconds or unix milliseconds; a header row is skipped automatically.
type CSVProvider struct{}

func NewCSVProvider() *CSVProvider { return &CSVProvider{} }

// Load reads every candle from the file, sorted oldest first.
func (p *CSVProvider) Load(path string) ([]types.Candle, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("data: open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var candles []types.Candle
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("data: read %s line %d: %w", path, line+1, err)
		}
		line++
		if len(record) < 6 {
			return nil, fmt.Errorf("data: %s line %d: need 6 columns, got %d", path, line, len(record))
		}

		ts, err := parseTimestamp(record[0])
		if err != nil {
			if line == 1 {
				continue // header row
			}
			return nil, fmt.Errorf("data: %s line %d: %w", path, line, err)
		}

		vals := make([]float64, 5)
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(record[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("data: %s line %d column %d: %w", path, line, i+2, err)
			}
			vals[i] = v
		}

		candles = append(candles, types.Candle{
			Timestamp: ts,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("data: %s contains no candles", path)
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	}
	// heuristic: millisecond epochs are 13 digits
	if n > 1e12 {
		return time.UnixMilli(n).UTC(), nil
	}
	return time.Unix(n, 0).UTC(), nil
}
