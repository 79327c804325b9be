// Command download fetches historical klines from the Bybit public
// market endpoint and writes them as CSV in the layout the backtester
// reads: timestamp,open,high,low,close,volume.
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

type klineResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		Symbol string     `json:"symbol"`
		List   [][]string `json:"list"`
	} `json:"result"`
}

type kline struct {
	startMs int64
	fields  []string // open, high, low, close, volume
}

func main() {
	var (
		symbol   = flag.String("symbol", "BTCUSDT", "Trading symbol")
		interval = flag.String("interval", "15", "Kline interval (1, 5, 15, 30, 60, 240, D)")
		category = flag.String("category", "linear", "Market category (spot, linear, inverse)")
		start    = flag.String("start", "", "Start date (YYYY-MM-DD)")
		end      = flag.String("end", "", "End date (YYYY-MM-DD), defaults to now")
		output   = flag.String("output", "", "Output CSV path (default data/<symbol>_<interval>.csv)")
		baseURL  = flag.String("base-url", "https://api.bybit.com", "Bybit API base URL")
	)
	flag.Parse()

	if *start == "" {
		log.Fatal("Please specify a start date with -start (YYYY-MM-DD)")
	}
	startTime, err := time.Parse("2006-01-02", *start)
	if err != nil {
		log.Fatalf("Invalid start date: %v", err)
	}
	endTime := time.Now().UTC()
	if *end != "" {
		endTime, err = time.Parse("2006-01-02", *end)
		if err != nil {
			log.Fatalf("Invalid end date: %v", err)
		}
	}
	path := *output
	if path == "" {
		path = filepath.Join("data", fmt.Sprintf("%s_%s.csv", *symbol, *interval))
	}

	fmt.Printf("Downloading %s %s klines from %s to %s\n",
		*symbol, *interval, startTime.Format("2006-01-02"), endTime.Format("2006-01-02"))

	klines, err := download(*baseURL, *category, *symbol, *interval, startTime, endTime)
	if err != nil {
		log.Fatalf("Download error: %v", err)
	}
	if len(klines) == 0 {
		log.Fatal("No klines returned for the requested window")
	}

	if err := save(klines, path); err != nil {
		log.Fatalf("Save error: %v", err)
	}
	fmt.Printf("Saved %d candles to %s (%s to %s)\n", len(klines), path,
		time.UnixMilli(klines[0].startMs).UTC().Format("2006-01-02 15:04"),
		time.UnixMilli(klines[len(klines)-1].startMs).UTC().Format("2006-01-02 15:04"))
}

// download pages backwards through the kline endpoint. Bybit returns
// batches newest first, so each request ends where the previous batch
// began.
func download(baseURL, category, symbol, interval string, start, end time.Time) ([]kline, error) {
	const pageSize = 1000
	startMs := start.UnixMilli()
	currentEnd := end.UnixMilli()
	seen := make(map[int64]bool)
	var all []kline

	for currentEnd > startMs {
		url := fmt.Sprintf("%s/v5/market/kline?category=%s&symbol=%s&interval=%s&end=%d&limit=%d",
			baseURL, category, symbol, interval, currentEnd, pageSize)
		batch, err := fetchPage(url)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		oldest := currentEnd
		for _, k := range batch {
			if k.startMs < startMs || seen[k.startMs] {
				continue
			}
			seen[k.startMs] = true
			all = append(all, k)
			if k.startMs < oldest {
				oldest = k.startMs
			}
		}
		if oldest >= currentEnd {
			break
		}
		currentEnd = oldest - 1
		time.Sleep(100 * time.Millisecond) // stay under the public rate limit
	}

	sort.Slice(all, func(i, j int) bool { return all[i].startMs < all[j].startMs })
	return all, nil
}

func fetchPage(url string) ([]kline, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var kr klineResponse
	if err := json.NewDecoder(resp.Body).Decode(&kr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if kr.RetCode != 0 {
		return nil, fmt.Errorf("bybit error %d: %s", kr.RetCode, kr.RetMsg)
	}

	out := make([]kline, 0, len(kr.Result.List))
	for _, row := range kr.Result.List {
		if len(row) < 6 {
			continue
		}
		ms, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		out = append(out, kline{startMs: ms, fields: row[1:6]})
	}
	return out, nil
}

func save(klines []kline, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write([]string{"timestamp", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, k := range klines {
		record := append([]string{strconv.FormatInt(k.startMs, 10)}, k.fields...)
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return w.Error()
}
