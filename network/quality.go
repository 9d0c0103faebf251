package network

import (
	"log"
	"sync"
	"time"

	"github.com/automoto/hoopjam-mp/config"
)

// Quality derives adaptive tuning from measured round-trip times. Samples
// arrive from the transport goroutine, reads come from the tick loop.
type Quality struct {
	mu      sync.RWMutex
	cfg     config.QualityConfig
	samples []time.Duration
	next    int
	tier    int
}

func NewQuality(cfg config.QualityConfig) *Quality {
	return &Quality{
		cfg:     cfg,
		samples: make([]time.Duration, 0, max(cfg.SampleWindow, 1)),
	}
}

// RecordRTT adds a sample and re-derives the tier.
func (q *Quality) RecordRTT(rtt time.Duration) {
	if rtt < 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.samples) < cap(q.samples) {
		q.samples = append(q.samples, rtt)
	} else {
		q.samples[q.next] = rtt
		q.next = (q.next + 1) % len(q.samples)
	}
	prev := q.tier
	q.tier = q.tierFor(q.averageLocked())
	if prev != q.tier && len(q.cfg.Tiers) > 0 {
		log.Printf("[quality] rtt %v: %s -> %s", q.averageLocked(), q.cfg.Tiers[prev].Name, q.cfg.Tiers[q.tier].Name)
	}
}

// RTT returns the averaged round-trip time, zero before any sample.
func (q *Quality) RTT() time.Duration {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.averageLocked()
}

// Tier returns the current tuning tier.
func (q *Quality) Tier() config.QualityTier {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if len(q.cfg.Tiers) == 0 {
		return config.QualityTier{Strength: 1, BlendFactor: 0.5, PredictionWindow: 30}
	}
	return q.cfg.Tiers[q.tier]
}

func (q *Quality) FlushInterval() time.Duration { return q.Tier().FlushInterval }

func (q *Quality) Strength() float64 { return q.Tier().Strength }

func (q *Quality) BlendFactor() float64 { return q.Tier().BlendFactor }

func (q *Quality) PredictionWindow() int { return q.Tier().PredictionWindow }

func (q *Quality) averageLocked() time.Duration {
	if len(q.samples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, s := range q.samples {
		sum += s
	}
	return sum / time.Duration(len(q.samples))
}

func (q *Quality) tierFor(rtt time.Duration) int {
	for i, t := range q.cfg.Tiers {
		if t.MaxRTT == 0 || rtt < t.MaxRTT {
			return i
		}
	}
	return max(len(q.cfg.Tiers)-1, 0)
}
