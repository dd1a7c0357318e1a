package status

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/padfleet/status-monitor/internal/feed"
)

// Board holds the latest status of every device, keyed by pad code.
type Board struct {
	devices cmap.ConcurrentMap[string, Device]
	logger  zerolog.Logger

	mu         sync.Mutex
	snapshots  int
	deltas     int
	lastUpdate time.Time
	lastError  string
}

// BoardInfo describes how the board has been fed.
type BoardInfo struct {
	Devices    int       `json:"devices"`
	Snapshots  int       `json:"snapshots"`
	Deltas     int       `json:"deltas"`
	LastUpdate time.Time `json:"last_update,omitempty"`
	LastError  string    `json:"last_feed_error,omitempty"`
}

// NewBoard creates an empty board.
func NewBoard(logger zerolog.Logger) *Board {
	return &Board{
		devices: cmap.New[Device](),
		logger:  logger.With().Str("component", "board").Logger(),
	}
}

// HandleMessage applies a forwarded feed message to the board.
func (b *Board) HandleMessage(msg feed.Message) {
	var err error
	switch msg.Type {
	case feed.TypeStatusUpdate:
		err = b.ApplySnapshot(msg.Data)
	case feed.TypeSingleStatusUpdate:
		err = b.ApplyDelta(msg.Data)
	case feed.TypeError:
		b.mu.Lock()
		b.lastError = msg.Message
		b.mu.Unlock()
		b.logger.Warn().Str("message", msg.Message).Msg("Status feed reported an error")
		return
	default:
		return
	}
	if err != nil {
		b.logger.Warn().Err(err).Str("type", msg.Type).Msg("Dropping undecodable status message")
	}
}

// ApplySnapshot replaces the board with the records in raw, a JSON array.
// New records are stored before stale ones are removed, so readers never
// see an empty board in between.
func (b *Board) ApplySnapshot(raw json.RawMessage) error {
	devices, err := decodeDevices(raw)
	if err != nil {
		return err
	}

	fresh := make(map[string]Device, len(devices))
	for _, d := range devices {
		if d.PadCode == "" {
			continue
		}
		fresh[d.PadCode] = d
	}

	b.devices.MSet(fresh)
	for _, key := range b.devices.Keys() {
		if _, ok := fresh[key]; !ok {
			b.devices.Remove(key)
		}
	}

	b.mu.Lock()
	b.snapshots++
	b.lastUpdate = time.Now()
	b.mu.Unlock()

	b.logger.Debug().Int("devices", len(fresh)).Msg("Applied status snapshot")
	return nil
}

// ApplyDelta overlays one record onto the stored one. Only the fields present
// in raw change. A bare array is applied record by record.
func (b *Board) ApplyDelta(raw json.RawMessage) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return fmt.Errorf("decode delta list: %w", err)
		}
		var errs []error
		for i, item := range items {
			if err := b.ApplyDelta(item); err != nil {
				b.logger.Warn().Err(err).Int("index", i).Msg("Skipping bad delta record")
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	var key Device
	if err := json.Unmarshal(trimmed, &key); err != nil {
		return fmt.Errorf("decode delta: %w", err)
	}
	if key.PadCode == "" {
		return ErrNoPadCode
	}

	var overlayErr error
	b.devices.Upsert(key.PadCode, Device{}, func(exists bool, current Device, _ Device) Device {
		next := current
		if !exists {
			next = Device{}
		}
		if err := json.Unmarshal(trimmed, &next); err != nil {
			overlayErr = err
			return current
		}
		return next
	})
	if overlayErr != nil {
		return fmt.Errorf("apply delta for %s: %w", key.PadCode, overlayErr)
	}

	b.mu.Lock()
	b.deltas++
	b.lastUpdate = time.Now()
	b.mu.Unlock()
	return nil
}

// Get returns the device with the given pad code.
func (b *Board) Get(padCode string) (Device, bool) {
	return b.devices.Get(padCode)
}

// Len returns the number of devices on the board.
func (b *Board) Len() int {
	return b.devices.Count()
}

// All returns every device ordered by pad code.
func (b *Board) All() []Device {
	items := b.devices.Items()
	out := make([]Device, 0, len(items))
	for _, d := range items {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PadCode < out[j].PadCode })
	return out
}

// Info returns feed counters for the board.
func (b *Board) Info() BoardInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BoardInfo{
		Devices:    b.devices.Count(),
		Snapshots:  b.snapshots,
		Deltas:     b.deltas,
		LastUpdate: b.lastUpdate,
		LastError:  b.lastError,
	}
}
