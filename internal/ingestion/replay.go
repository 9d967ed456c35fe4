package ingestion

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"clmm-swap-collector/internal/collector"
)

// maxRecordSize bounds one JSON line; swap transactions log well under this.
const maxRecordSize = 4 << 20

// Record is one recorded logs notification, one JSON object per line.
type Record struct {
	Signature string      `json:"signature"`
	Slot      int64       `json:"slot"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err,omitempty"`
}

// ReplaySource replays recorded notifications from a JSON lines stream.
// Blank lines are skipped; a line that does not parse ends the stream with an error.
type ReplaySource struct {
	r      io.Reader
	closer io.Closer
	logger *zap.Logger

	mu  sync.Mutex
	err error

	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Compile-time interface check.
var _ collector.BundleSource = (*ReplaySource)(nil)

// NewReplaySource creates a replay source. r is closed by Close when it is an io.Closer.
func NewReplaySource(r io.Reader, logger *zap.Logger) *ReplaySource {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReplaySource{r: r, logger: logger, stop: make(chan struct{})}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Subscribe implements collector.BundleSource.
func (s *ReplaySource) Subscribe(ctx context.Context) (<-chan collector.Bundle, error) {
	out := make(chan collector.Bundle)
	s.wg.Add(1)
	go s.run(ctx, out)
	return out, nil
}

func (s *ReplaySource) run(ctx context.Context, out chan<- collector.Bundle) {
	defer s.wg.Done()
	defer close(out)

	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			s.setErr(fmt.Errorf("replay line %d: %w", line, err))
			return
		}

		select {
		case out <- collector.Bundle(rec):
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		}
	}

	if err := scanner.Err(); err != nil {
		s.setErr(fmt.Errorf("replay read: %w", err))
		return
	}
	s.logger.Info("replay finished", zap.Int("lines", line))
}

func (s *ReplaySource) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Err implements collector.BundleSource.
func (s *ReplaySource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the replay and closes the underlying reader.
func (s *ReplaySource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		// Closing the reader unblocks a pending Scan.
		if s.closer != nil {
			err = s.closer.Close()
		}
		s.wg.Wait()
	})
	return err
}
