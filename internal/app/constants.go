package app

import "time"

// Engine timing defaults. Centralized so tests and local runs can tighten
// them without touching call sites.
const (
	// DefaultSaveDebounce batches session writes after accepted moves.
	DefaultSaveDebounce = 500 * time.Millisecond

	// DefaultWatchdogGrace is how long past the opponent's turn limit we
	// wait before reporting their timeout on their behalf. The grace keeps
	// the owner's own clock authoritative in the common case.
	DefaultWatchdogGrace = 2 * time.Second

	// DefaultLogPollInterval paces the durable-log polling that backs the
	// opponent watchdog and degraded-transport play.
	DefaultLogPollInterval = time.Second

	// eventBuffer bounds the UI event queue.
	eventBuffer = 128
)
