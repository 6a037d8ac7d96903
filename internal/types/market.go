package types

import "time"

type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval1d  Interval = "1d"
)

// Duration returns the bar period for the interval. Unknown intervals
// default to one minute.
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval1m:
		return time.Minute
	case Interval5m:
		return 5 * time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval30m:
		return 30 * time.Minute
	case Interval1h:
		return time.Hour
	case Interval1d:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

// Candle is a single OHLCV price bar.
type Candle struct {
	Symbol string    `json:"symbol" csv:"symbol"`
	Time   time.Time `json:"time" csv:"time"`
	Open   float64   `json:"open" csv:"open"`
	High   float64   `json:"high" csv:"high"`
	Low    float64   `json:"low" csv:"low"`
	Close  float64   `json:"close" csv:"close"`
	Volume float64   `json:"volume" csv:"volume"`
}

// SignalPoint is a single strategy evaluation point: the symbol, the bar
// timestamp, and the window of candles ending at that timestamp. Window is
// ordered oldest first; the last element is the bar at Time.
type SignalPoint struct {
	Symbol string
	Time   time.Time
	Window []Candle
}

// LatestClose returns the close of the newest bar in the window, or 0 when
// the window is empty.
func (p SignalPoint) LatestClose() float64 {
	if len(p.Window) == 0 {
		return 0
	}

	return p.Window[len(p.Window)-1].Close
}
