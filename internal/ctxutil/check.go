// Package ctxutil provides context utility functions.
package ctxutil

import "context"

// Canceled reports whether ctx is done, returning its error (Canceled or
// DeadlineExceeded) so long-running operations can bail out at entry.
//
// ctx.Err() already returns nil while Done is open, so no select is needed.
func Canceled(ctx context.Context) error {
	return ctx.Err()
}
