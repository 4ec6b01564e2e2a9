// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !windows

package supervisor

import (
	"os"
	"syscall"
)

// sigterm is the orderly-shutdown signal sent to supervised children.
var sigterm os.Signal = syscall.SIGTERM
