package domain

import "errors"

var (
	// ErrSymbolNotMonitored is returned when a symbol left the universe while work on it was in flight.
	ErrSymbolNotMonitored = errors.New("symbol not monitored")
	// ErrDegenerateLevels marks a key-level computation that produced no usable levels.
	ErrDegenerateLevels = errors.New("degenerate key levels")
	// ErrInsufficientData is returned when there is not enough history to analyze a symbol.
	ErrInsufficientData = errors.New("insufficient market data")
	// ErrMalformedFrame is returned by stream decoding for frames that cannot be parsed.
	ErrMalformedFrame = errors.New("malformed stream frame")
	// ErrNotifierDisabled is returned by notifiers that were not configured.
	ErrNotifierDisabled = errors.New("notifier disabled")
)

// ErrStorageDisabled is returned by history queries when no signal store is configured.
var ErrStorageDisabled = errors.New("signal storage disabled")
