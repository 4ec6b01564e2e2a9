// SPDX-License-Identifier: GPL-3.0-or-later

//go:build windows

package supervisor

import "os"

// sigterm is the orderly-shutdown signal sent to supervised children.
// Windows has no SIGTERM; os.Kill is the closest available signal, and
// [os.Process.Signal] on Windows only actually supports os.Kill anyway.
var sigterm os.Signal = os.Kill
