// Package csvfile appends trade rows to a CSV file.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"clmm-swap-collector/internal/domain"
	"clmm-swap-collector/internal/storage"
)

// Header is the first row of every trade file.
var Header = []string{"timestamp", "symbol", "trade_price", "trade_quantity", "trade_side"}

// TradeStore appends trade rows to one CSV file. Every Append is flushed and fsynced.
type TradeStore struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *csv.Writer
}

// Open opens path for appending, creating it and its directory if needed.
// The header is written only when the file is new or empty.
func Open(path string) (*TradeStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trade file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat trade file: %w", err)
	}

	s := &TradeStore{
		path: path,
		file: f,
		w:    csv.NewWriter(f),
	}

	if info.Size() == 0 {
		if err := s.writeRecord(Header); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	return s, nil
}

// Path returns the file path.
func (s *TradeStore) Path() string {
	return s.path
}

// Append writes one row.
func (s *TradeStore) Append(_ context.Context, t *domain.Trade) error {
	if err := storage.ValidateTrade(t); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return fmt.Errorf("trade file %s is closed", s.path)
	}
	if err := s.writeRecord(Record(t)); err != nil {
		return fmt.Errorf("append trade: %w", err)
	}
	return nil
}

// Record renders a trade as CSV fields.
func Record(t *domain.Trade) []string {
	return []string{
		strconv.FormatInt(t.Timestamp, 10),
		t.Symbol,
		strconv.FormatFloat(t.Price, 'f', -1, 64),
		strconv.FormatFloat(t.Quantity, 'f', -1, 64),
		string(t.Side),
	}
}

func (s *TradeStore) writeRecord(record []string) error {
	if err := s.w.Write(record); err != nil {
		return err
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return err
	}
	return s.file.Sync()
}

// Close closes the file.
func (s *TradeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

var _ storage.TradeStore = (*TradeStore)(nil)
