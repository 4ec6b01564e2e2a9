// SPDX-License-Identifier: GPL-3.0-or-later

// Package supervisor owns the browser core's process table: spawning
// renderer/network/GPU/utility/extension/storage/audio child processes,
// restarting them with backoff on unexpected death, and driving an
// orderly SIGTERM shutdown per §6.
package supervisor
