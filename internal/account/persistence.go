package account

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/quantframe/papertrade/internal/types"
	"github.com/quantframe/papertrade/pkg/errors"
)

// Snapshot is the serialized account state written between live runs.
type Snapshot struct {
	InitialCapital   float64             `json:"initial_capital"`
	CommissionRate   float64             `json:"commission_rate"`
	Cash             float64             `json:"cash"`
	Positions        []types.Position    `json:"positions"`
	LatestPrices     map[string]float64  `json:"latest_prices"`
	Trades           []types.TradeRecord `json:"trades"`
	ProcessedSignals []string            `json:"processed_signals"`
	EquityCurve      []types.EquityPoint `json:"equity_curve"`
	SavedAt          time.Time           `json:"saved_at"`
}

// Snapshot captures the full mutable state of the account.
func (a *Account) Snapshot() Snapshot {
	snap := Snapshot{
		InitialCapital: a.initialCapital,
		CommissionRate: a.commissionRate,
		Cash:           a.cash,
		LatestPrices:   make(map[string]float64, len(a.latestPrices)),
		Trades:         a.trades,
		EquityCurve:    a.equityCurve,
	}

	for symbol, price := range a.latestPrices {
		snap.LatestPrices[symbol] = price
	}

	for _, pos := range a.positions {
		if pos.Quantity > 0 {
			snap.Positions = append(snap.Positions, *pos)
		}
	}

	for signalID := range a.processedSignals {
		snap.ProcessedSignals = append(snap.ProcessedSignals, signalID)
	}

	return snap
}

// Restore replaces the account's mutable state with the snapshot. Lot sizes
// and stock names are wiring, not state, and are left untouched.
func (a *Account) Restore(snap Snapshot) {
	if snap.InitialCapital > 0 {
		a.initialCapital = snap.InitialCapital
	}

	if snap.CommissionRate > 0 {
		a.commissionRate = snap.CommissionRate
	}

	a.cash = snap.Cash
	a.trades = snap.Trades
	a.equityCurve = snap.EquityCurve

	a.positions = make(map[string]*types.Position, len(snap.Positions))
	for _, pos := range snap.Positions {
		p := pos
		a.positions[p.Symbol] = &p
	}

	a.latestPrices = make(map[string]float64, len(snap.LatestPrices))
	for symbol, price := range snap.LatestPrices {
		a.latestPrices[symbol] = price
	}

	a.processedSignals = make(map[string]struct{}, len(snap.ProcessedSignals))
	for _, signalID := range snap.ProcessedSignals {
		a.processedSignals[signalID] = struct{}{}
	}
}

// Persistence writes account snapshots to a JSON file. Saves are atomic:
// the snapshot is written to a temp file and renamed over the target.
type Persistence struct {
	path string
}

func NewPersistence(path string) *Persistence {
	return &Persistence{path: path}
}

func (p *Persistence) Path() string {
	return p.path
}

// Save writes the account snapshot to disk.
func (p *Persistence) Save(a *Account) error {
	data, err := json.MarshalIndent(a.Snapshot(), "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeSnapshotWriteFailed, "failed to encode account snapshot", err)
	}

	if dir := filepath.Dir(p.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(errors.ErrCodeSnapshotWriteFailed, "failed to create snapshot directory", err)
		}
	}

	tmpFile := p.path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeSnapshotWriteFailed, "failed to write snapshot temp file", err)
	}

	if err := os.Rename(tmpFile, p.path); err != nil {
		os.Remove(tmpFile)

		return errors.Wrap(errors.ErrCodeSnapshotWriteFailed, "failed to replace snapshot file", err)
	}

	return nil
}

// Load restores the account from the snapshot file. A missing or corrupt
// snapshot leaves the account untouched and returns an error the caller is
// expected to log and continue from.
func (p *Persistence) Load(a *Account) error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeSnapshotReadFailed, "failed to read account snapshot", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return errors.Wrap(errors.ErrCodeSnapshotCorrupt, "failed to decode account snapshot", err)
	}

	a.Restore(snap)

	return nil
}
