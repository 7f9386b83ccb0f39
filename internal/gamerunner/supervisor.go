package gamerunner

import (
	"context"
	"log/slog"
	"os/exec"
	"sync/atomic"
	"syscall"
)

// childPID is the process-wide atomic pid of the currently supervised
// child, readable without locking by main's panic-recovery hook so a
// panic that unwinds through main can still SIGTERM the emulator before
// exit. That hook does not see panics raised on other goroutines, such
// as the lifecycle manager's run jobs. Zero means no child.
var childPID atomic.Int32

// KillRecordedChild SIGTERMs the currently tracked child process, if
// any. Intended to be called from a recover() hook wrapping main.
func KillRecordedChild() {
	pid := childPID.Load()
	if pid == 0 {
		return
	}
	_ = syscall.Kill(int(pid), syscall.SIGTERM)
}

// Supervisor owns at most one child emulator process (C4).
type Supervisor struct {
	log     *slog.Logger
	current *exec.Cmd
	exited  chan error
}

func New(log *slog.Logger) *Supervisor {
	return &Supervisor{log: log}
}

// Run consumes Commands from in, concurrently awaiting either the next
// command or the current child's exit, until ctx is cancelled or in is
// closed.
func (s *Supervisor) Run(ctx context.Context, in <-chan Command) error {
	for {
		select {
		case <-ctx.Done():
			s.stopCurrent()
			return nil
		case cmd, ok := <-in:
			if !ok {
				s.stopCurrent()
				return nil
			}
			if err := s.handle(cmd); err != nil {
				return err
			}
		case err := <-s.exited:
			s.log.Info("child exited", "err", err)
			childPID.Store(0)
			s.current = nil
			s.exited = nil
		}
	}
}

func (s *Supervisor) handle(cmd Command) error {
	switch cmd.Kind {
	case KindStop:
		s.stopCurrent()
		return nil
	case KindSwitchTo:
		s.stopCurrent()
		return s.spawn(cmd.Launch)
	default:
		return nil
	}
}

func (s *Supervisor) spawn(launch []string) error {
	if len(launch) == 0 {
		return nil
	}
	cmd := exec.Command(launch[0], launch[1:]...)
	if err := cmd.Start(); err != nil {
		return err
	}
	childPID.Store(int32(cmd.Process.Pid))
	s.current = cmd

	exited := make(chan error, 1)
	s.exited = exited
	go func() {
		exited <- cmd.Wait()
	}()
	return nil
}

// stopCurrent implements the §4.4 stop semantics: SIGTERM and wait for
// exit when a pid is known, else a forced kill; the pid is cleared
// either way.
func (s *Supervisor) stopCurrent() {
	if s.current == nil {
		return
	}
	s.log.Info("exiting current child")
	if childPID.Load() != 0 {
		s.log.Info("sending sigterm")
		_ = s.current.Process.Signal(syscall.SIGTERM)
	} else {
		_ = s.current.Process.Kill()
	}
	<-s.exited
	childPID.Store(0)
	s.current = nil
	s.exited = nil
}
