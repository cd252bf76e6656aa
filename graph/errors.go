package graph

import "errors"

// Sentinel errors shared across the store, identity registry and mapping
// engine. Callers match them with errors.Is; the concrete error usually
// wraps one of these with operation context.
var (
	// ErrConflict reports a namespace or identity collision outside the
	// accepted retry policy (e.g. a prefix already bound to another URI).
	ErrConflict = errors.New("conflict")

	// ErrConfiguration reports a malformed mapping rule or macro
	// registration detected at load time. Fatal for engine startup.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrCollisionExhausted reports that the UID suffix retry cap was
	// reached without finding a free URI. Fatal for that request only.
	ErrCollisionExhausted = errors.New("uid collision retries exhausted")

	// ErrTranslation reports a filter operator unsupported by the active
	// store backend.
	ErrTranslation = errors.New("unsupported filter for backend")

	// ErrIndex reports an out-of-range substring extraction in a macro.
	ErrIndex = errors.New("index out of range")
)

// Warning is a non-fatal mapping evaluation problem: one assertion was
// skipped, the run continued. Warnings are aggregated per run.
type Warning struct {
	RuleName string `json:"ruleName"`
	Message  string `json:"message"`
}
