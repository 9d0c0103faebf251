package config

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/quasilyte/gdata"
)

const tuningKey = "tuning"

// ItemStore is the slice of gdata.Manager the tuning store needs.
type ItemStore interface {
	LoadItem(itemKey string) ([]byte, error)
	SaveItem(itemKey string, data []byte) error
}

// SavedTuning holds the tunables a player may override on disk. Zero values
// leave the built-in default untouched.
type SavedTuning struct {
	VisualGuardSmallDelta  float64 `json:"visualGuardSmallDelta,omitempty"`
	VisualGuardWindowTicks int     `json:"visualGuardWindowTicks,omitempty"`
	VisualGuardMaxSuppress int     `json:"visualGuardMaxSuppress,omitempty"`
	DriftSnapThreshold     float64 `json:"driftSnapThreshold,omitempty"`
	CatchUpFrames          int     `json:"catchUpFrames,omitempty"`
	ReconcileIntervalMs    int     `json:"reconcileIntervalMs,omitempty"`
	FlushIntervalMs        int     `json:"flushIntervalMs,omitempty"`
	InterpSnapDistance     float64 `json:"interpSnapDistance,omitempty"`
	LastAddr               string  `json:"lastAddr,omitempty"`
	LastName               string  `json:"lastName,omitempty"`
}

// OpenStore opens the per-user gdata store.
func OpenStore(appName string) (ItemStore, error) {
	m, err := gdata.Open(gdata.Config{
		AppName: appName,
	})
	if err != nil {
		return nil, fmt.Errorf("open gdata %s: %w", appName, err)
	}
	return m, nil
}

// LoadTuning reads saved overrides. A missing item yields nil, nil.
func LoadTuning(store ItemStore) (*SavedTuning, error) {
	if store == nil {
		return nil, nil
	}
	data, err := store.LoadItem(tuningKey)
	if err != nil {
		return nil, fmt.Errorf("load tuning: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var t SavedTuning
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse tuning: %w", err)
	}
	return &t, nil
}

// SaveTuning writes overrides to the store.
func SaveTuning(store ItemStore, t *SavedTuning) error {
	if store == nil || t == nil {
		return nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("serialize tuning: %w", err)
	}
	if err := store.SaveItem(tuningKey, data); err != nil {
		return fmt.Errorf("save tuning: %w", err)
	}
	return nil
}

// ApplyTuning overlays non-zero saved values onto the global config.
func ApplyTuning(t *SavedTuning) {
	if t == nil {
		return
	}
	if t.VisualGuardSmallDelta > 0 {
		Prediction.VisualGuardSmallDelta = t.VisualGuardSmallDelta
	}
	if t.VisualGuardWindowTicks > 0 {
		Prediction.VisualGuardWindowTicks = t.VisualGuardWindowTicks
	}
	if t.VisualGuardMaxSuppress > 0 {
		Prediction.VisualGuardMaxSuppress = t.VisualGuardMaxSuppress
	}
	if t.DriftSnapThreshold > 0 {
		Prediction.DriftSnapThreshold = t.DriftSnapThreshold
	}
	if t.CatchUpFrames > 0 {
		Prediction.CatchUpFrames = t.CatchUpFrames
	}
	if t.ReconcileIntervalMs > 0 {
		Prediction.ReconcileInterval = time.Duration(t.ReconcileIntervalMs) * time.Millisecond
	}
	if t.FlushIntervalMs > 0 {
		d := time.Duration(t.FlushIntervalMs) * time.Millisecond
		if d < InputBuffer.MinFlushInterval || d > InputBuffer.MaxFlushInterval {
			log.Printf("[config] flush interval override %v out of range, ignored", d)
		} else {
			InputBuffer.DefaultFlushInterval = d
		}
	}
	if t.InterpSnapDistance > 0 {
		Interp.SnapDistance = t.InterpSnapDistance
	}
}
