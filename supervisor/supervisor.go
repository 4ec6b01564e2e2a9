// SPDX-License-Identifier: GPL-3.0-or-later

package supervisor

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/bassosimone/browsercore/obs"
)

// ExitCode enumerates the host-level exit codes of §6.
type ExitCode int

const (
	ExitNormal ExitCode = iota
	ExitConfigurationError
	ExitInitializationFailure
	ExitUnrecoverableSubsystemFailure
)

// ChannelOwner is implemented by whatever owns the IPC channel table (the
// ipc.Fabric in this repo); the supervisor closes a process's channel on
// exit without needing to know about message framing itself.
type ChannelOwner interface {
	CloseChannel(id string) error
}

// processState tracks one supervised child process across restarts.
type processState struct {
	spec     SpawnSpec
	cmd      *exec.Cmd
	restarts int
	done     chan struct{}
	killed   bool
}

// Supervisor owns the process table: it spawns children per [SpawnSpec],
// restarts them with backoff on unexpected exit, and drives an orderly
// shutdown on cancellation, per §6 and §7 (panics/aborts from a child
// never cross the process boundary; the supervisor only observes child
// death and restarts).
type Supervisor struct {
	mu        sync.Mutex
	processes map[string]*processState
	channels  ChannelOwner
	logger    obs.SLogger
	wg        sync.WaitGroup
}

// New builds a Supervisor. channels may be nil if the caller does not need
// channel-table cleanup on process exit.
func New(channels ChannelOwner, logger obs.SLogger) *Supervisor {
	if logger == nil {
		logger = obs.DefaultSLogger()
	}
	return &Supervisor{
		processes: make(map[string]*processState),
		channels:  channels,
		logger:    logger,
	}
}

// Spawn launches a child process per spec and begins supervising it: a
// crash (non-zero exit, or signal death) triggers a restart with backoff,
// up to spec.MaxRestarts, after which the process is marked permanently
// dead and [Supervisor.Wait] observes no further activity for it.
//
// The supervision loop runs in a background goroutine and exits when ctx
// is cancelled, the restart budget is exhausted, or [Supervisor.Stop] is
// called for this instance.
func (s *Supervisor) Spawn(ctx context.Context, spec SpawnSpec) error {
	if spec.InstanceID == "" {
		spec.InstanceID = NewInstanceID()
	}

	state := &processState{spec: spec, done: make(chan struct{})}

	s.mu.Lock()
	s.processes[spec.InstanceID] = state
	s.mu.Unlock()

	cmd, err := s.start(ctx, spec)
	if err != nil {
		return fmt.Errorf("supervisor: spawn %s/%s: %w", spec.Kind, spec.InstanceID, err)
	}
	state.cmd = cmd

	s.wg.Add(1)
	go s.supervise(ctx, state)

	return nil
}

func (s *Supervisor) start(ctx context.Context, spec SpawnSpec) (*exec.Cmd, error) {
	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	s.logger.Info("supervisor.process.start",
		"kind", string(spec.Kind), "instance_id", spec.InstanceID, "pid", cmd.Process.Pid)
	return cmd, nil
}

func (s *Supervisor) supervise(ctx context.Context, state *processState) {
	defer s.wg.Done()
	defer close(state.done)

	for {
		err := state.cmd.Wait()

		s.mu.Lock()
		killed := state.killed
		s.mu.Unlock()

		if killed {
			s.logger.Info("supervisor.process.stopped",
				"kind", string(state.spec.Kind), "instance_id", state.spec.InstanceID)
			return
		}

		if ctx.Err() != nil {
			return
		}

		s.logger.Info("supervisor.process.exited",
			"kind", string(state.spec.Kind), "instance_id", state.spec.InstanceID, "error", errString(err))

		if state.spec.MaxRestarts >= 0 && state.restarts >= state.spec.MaxRestarts {
			s.logger.Info("supervisor.process.restart_budget_exhausted",
				"kind", string(state.spec.Kind), "instance_id", state.spec.InstanceID)
			if s.channels != nil {
				_ = s.channels.CloseChannel(state.spec.InstanceID)
			}
			return
		}

		delay := state.spec.RestartBackoff.Delay(state.restarts)
		state.restarts++

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		cmd, startErr := s.start(ctx, state.spec)
		if startErr != nil {
			s.logger.Info("supervisor.process.restart_failed",
				"kind", string(state.spec.Kind), "instance_id", state.spec.InstanceID, "error", startErr.Error())
			return
		}
		state.cmd = cmd
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Stop sends SIGTERM to the named instance and waits for it to exit,
// marking it as a deliberate stop so the supervision loop does not
// restart it.
func (s *Supervisor) Stop(instanceID string) error {
	s.mu.Lock()
	state, ok := s.processes[instanceID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("supervisor: unknown instance %q", instanceID)
	}

	s.mu.Lock()
	state.killed = true
	s.mu.Unlock()

	if state.cmd != nil && state.cmd.Process != nil {
		_ = state.cmd.Process.Signal(sigterm)
	}

	<-state.done
	return nil
}

// Shutdown drives the orderly shutdown of §6: stop accepting new work
// (the caller must stop calling [Supervisor.Spawn]), signal every
// supervised process with SIGTERM, and wait up to grace for them to exit.
func (s *Supervisor) Shutdown(grace time.Duration) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.processes))
	for id, state := range s.processes {
		state.killed = true
		if state.cmd != nil && state.cmd.Process != nil {
			_ = state.cmd.Process.Signal(sigterm)
		}
		ids = append(ids, id)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		s.logger.Info("supervisor.shutdown.grace_period_exceeded", "pending", len(ids))
	}
}
