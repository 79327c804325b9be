// Package journal emits the structured records exposed to the
// persistence collaborator: one record per decision (traded or not), one
// per trade event, and one portfolio snapshot per tick. Records are
// written as JSON lines so downstream storage can ingest them directly.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/duchoang612/crypto-regime-bot/internal/features"
	"github.com/duchoang612/crypto-regime-bot/internal/risk"
	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

// DecisionRecord captures one evaluation outcome for one symbol.
type DecisionRecord struct {
	Timestamp  time.Time       `json:"timestamp"`
	Symbol     string          `json:"symbol"`
	Regime     string          `json:"regime"`
	StrategyID string          `json:"strategy_id,omitempty"`
	Direction  string          `json:"direction"`
	Confidence float64         `json:"confidence"`
	Rationale  []string        `json:"rationale,omitempty"`
	Accepted   bool            `json:"accepted"`
	Reason     string          `json:"reason,omitempty"`
	Size       risk.SizeResult `json:"size,omitempty"`
	Features   features.Vector `json:"features"`
}

// TradeRecord captures an open, partial close or full close.
type TradeRecord struct {
	Timestamp  time.Time       `json:"timestamp"`
	Symbol     string          `json:"symbol"`
	Event      string          `json:"event"` // open | partial_close | close
	Direction  types.Direction `json:"direction"`
	Quantity   float64         `json:"quantity"`
	Price      float64         `json:"price"`
	Fee        float64         `json:"fee"`
	PnL        float64         `json:"pnl,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	StrategyID string          `json:"strategy_id,omitempty"`
}

// SnapshotRecord is the per-tick portfolio state.
type SnapshotRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	TotalValue    float64   `json:"total_value"`
	FreeBalance   float64   `json:"free_balance"`
	PeakValue     float64   `json:"peak_value"`
	DailyPnLPct   float64   `json:"daily_pnl_pct"`
	Drawdown      float64   `json:"drawdown"`
	OpenPositions int       `json:"open_positions"`
}

type envelope struct {
	Kind   string `json:"kind"`
	Record any    `json:"record"`
}

// Writer appends records to a JSONL file. Safe for use from the single
// evaluation loop; the mutex only guards against a concurrent Close.
type Writer struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewWriter opens (or creates) the journal file under dir.
func NewWriter(dir, session string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("journal: create directory: %w", err)
	}
	name := fmt.Sprintf("%s_%s.jsonl", session, time.Now().UTC().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("journal: open file: %w", err)
	}
	return &Writer{file: file, enc: json.NewEncoder(file)}, nil
}

func (w *Writer) write(kind string, record any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return fmt.Errorf("journal: writer closed")
	}
	return w.enc.Encode(envelope{Kind: kind, Record: record})
}

func (w *Writer) Decision(r DecisionRecord) error { return w.write("decision", r) }
func (w *Writer) Trade(r TradeRecord) error       { return w.write("trade", r) }
func (w *Writer) Snapshot(r SnapshotRecord) error { return w.write("snapshot", r) }

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.file.Close()
	w.file = nil
	return err
}
