// SPDX-License-Identifier: GPL-3.0-or-later

// Command browsercore is the host process: it loads the configuration
// surface of §6, spawns the IPC fabric, and supervises child processes
// until an orderly shutdown or an unrecoverable subsystem failure.
package main

import "os"

func main() {
	os.Exit(int(run(os.Args[1:])))
}
