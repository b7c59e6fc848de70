// File path: internal/phase/noncritical.go
package phase

import "log/slog"

// nonCritical runs a best-effort secondary step, logging instead of
// propagating its failure. Only steps whose failure must not abort the
// primary operation go through here; the call site makes the distinction
// visible.
func nonCritical(logger *slog.Logger, op string, fn func() error) {
	if err := fn(); err != nil {
		logger.Warn("phase: non-critical step failed", "op", op, "error", err)
	}
}
