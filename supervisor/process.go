// SPDX-License-Identifier: GPL-3.0-or-later

package supervisor

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// ProcessKind is the role a supervised child process plays, per §6.
type ProcessKind string

const (
	ProcessRenderer  ProcessKind = "renderer"
	ProcessNetwork   ProcessKind = "network"
	ProcessGPU       ProcessKind = "gpu"
	ProcessUtility   ProcessKind = "utility"
	ProcessExtension ProcessKind = "extension"
	ProcessStorage   ProcessKind = "storage"
	ProcessAudio     ProcessKind = "audio"
)

// ResourceBudget bounds a child process's resource consumption.
type ResourceBudget struct {
	MemoryBytes int64
	CPUPercent  float64
}

// SandboxPolicy restricts what a child process may do at the OS level.
type SandboxPolicy struct {
	AllowedSyscalls []string
	FilesystemRoots []string
}

// SpawnSpec parameterizes a child process launch per §6's process-spawn
// contract.
type SpawnSpec struct {
	Kind           ProcessKind
	InstanceID     string
	Command        string
	Args           []string
	BootstrapAddr  string
	Budget         ResourceBudget
	Sandbox        SandboxPolicy
	MaxRestarts    int
	RestartBackoff BackoffPolicy
}

// NewInstanceID generates a fresh UUIDv7 identifying a spawned process
// instance.
func NewInstanceID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
