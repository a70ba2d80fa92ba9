package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"safetrack-backend/internal/models"
)

// ReplayProvider reads fixes from a JSON-lines stream, one fix per line,
// optionally pacing them with a fixed interval. It backs the simulator
// agent and tests.
type ReplayProvider struct {
	scanner  *bufio.Scanner
	interval time.Duration
	started  bool
}

// NewReplayProvider creates a provider over r. interval of zero replays as
// fast as the consumer reads.
func NewReplayProvider(r io.Reader, interval time.Duration) *ReplayProvider {
	return &ReplayProvider{scanner: bufio.NewScanner(r), interval: interval}
}

// Next returns the next recorded fix. io.EOF marks the end of the recording.
func (p *ReplayProvider) Next(ctx context.Context) (models.Fix, error) {
	if p.started && p.interval > 0 {
		select {
		case <-time.After(p.interval):
		case <-ctx.Done():
			return models.Fix{}, ctx.Err()
		}
	}
	p.started = true

	if err := ctx.Err(); err != nil {
		return models.Fix{}, err
	}
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return models.Fix{}, fmt.Errorf("failed to read fix: %w", err)
		}
		return models.Fix{}, io.EOF
	}

	var fix models.Fix
	if err := json.Unmarshal(p.scanner.Bytes(), &fix); err != nil {
		return models.Fix{}, fmt.Errorf("failed to parse fix: %w", err)
	}
	if fix.Time.IsZero() {
		fix.Time = time.Now()
	}
	return fix, nil
}
