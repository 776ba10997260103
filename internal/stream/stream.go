// Package stream simulates a live feed of mentions by sampling the mention
// table on a timer and tracking the share of negative mentions.
package stream

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"brandguard/internal/mentions"
)

// Threshold bounds for the negative percentage alert.
const (
	MinThreshold     = 5
	MaxThreshold     = 50
	DefaultThreshold = 25
)

type Options struct {
	BatchSize int
	Window    int
	Threshold float64
}

// Snapshot is one tick of the stream.
type Snapshot struct {
	Iteration   int                       `json:"iteration"`
	Brand       string                    `json:"brand"`
	Mentions    []mentions.Mention        `json:"mentions"`
	NegativePct float64                   `json:"negative_pct"`
	History     []float64                 `json:"history"`
	Threshold   float64                   `json:"threshold"`
	Alert       bool                      `json:"alert"`
	Breakdown   map[string]map[string]int `json:"breakdown"`
}

// Simulator is not safe for concurrent use; each viewer gets its own.
type Simulator struct {
	table     *mentions.Table
	rng       *rand.Rand
	opts      Options
	iteration int
	history   []float64
}

// ClampThreshold keeps a requested alert threshold within the slider range.
func ClampThreshold(v float64) float64 {
	if math.IsNaN(v) {
		return DefaultThreshold
	}
	return min(max(v, MinThreshold), MaxThreshold)
}

func NewSimulator(table *mentions.Table, opts Options, rng *rand.Rand) *Simulator {
	if opts.BatchSize < 1 {
		opts.BatchSize = 25
	}
	if opts.Window < 1 {
		opts.Window = 20
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Simulator{table: table, rng: rng, opts: opts}
}

// Next samples a new batch.
func (s *Simulator) Next() Snapshot {
	s.iteration++
	batch := s.table.Sample(s.rng, s.opts.BatchSize)

	var pct float64
	if len(batch) > 0 {
		negative := mentions.Count(batch).Negative
		pct = math.Round(float64(negative)/float64(len(batch))*100*100) / 100
	}

	s.history = append(s.history, pct)
	if len(s.history) > s.opts.Window {
		s.history = s.history[len(s.history)-s.opts.Window:]
	}

	snap := Snapshot{
		Iteration:   s.iteration,
		Mentions:    batch,
		NegativePct: pct,
		History:     append([]float64(nil), s.history...),
		Threshold:   s.opts.Threshold,
		Alert:       len(batch) > 0 && pct >= s.opts.Threshold,
		Breakdown:   breakdown(batch),
	}
	if len(batch) > 0 {
		snap.Brand = batch[0].Brand
	}
	return snap
}

// breakdown counts mentions per brand and sentiment. Rows whose sentiment is
// not a known label are counted under their raw value.
func breakdown(rows []mentions.Mention) map[string]map[string]int {
	out := make(map[string]map[string]int)
	for _, m := range rows {
		key := string(m.Label)
		if key == "" {
			key = m.Sentiment
		}
		if out[m.Brand] == nil {
			out[m.Brand] = make(map[string]int)
		}
		out[m.Brand][key]++
	}
	return out
}

// Run emits iterations snapshots, one per interval starting immediately. It
// stops early when emit fails or ctx is cancelled.
func (s *Simulator) Run(ctx context.Context, interval time.Duration, iterations int, emit func(Snapshot) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; i < iterations; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(s.Next()); err != nil {
			return err
		}
	}
	return nil
}

