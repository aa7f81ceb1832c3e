//go:build !unix

package dispatch

import (
	"context"

	"github.com/treykane/termgrid/internal/errs"
)

// Attach is unavailable without a Unix pseudo-terminal. Terminal clients on
// Windows always get their own console instead.
func Attach(_ context.Context, inv Invocation) error {
	return errs.NewLaunchError(inv.ClientArgv(), "attached sessions need a Unix terminal", nil)
}
