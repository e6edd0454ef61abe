//go:build linux

package monitor

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	logindPath      = "/org/freedesktop/login1"
	logindManager   = "org.freedesktop.login1.Manager"
	prepareForSleep = "org.freedesktop.login1.Manager.PrepareForSleep"
	inhibitWho      = "tilesync"
	inhibitWhy      = "clear tile"
)

// SleepMonitor watches systemd-logind for an imminent system suspend
type SleepMonitor struct {
	logger     *zap.Logger
	suspending chan struct{}
	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	dial       func() (DBusClient, error)
	conn       DBusClient
	inhibitor  io.Closer // delay lock held while no suspend is pending
	wg         sync.WaitGroup
}

// NewSleepMonitor creates a monitor for logind PrepareForSleep signals
func NewSleepMonitor(logger *zap.Logger) *SleepMonitor {
	return &SleepMonitor{
		logger:     logger,
		suspending: make(chan struct{}, 1),
		dial:       NewSystemDBusClient,
	}
}

// Start subscribes to PrepareForSleep and blocks until ctx is cancelled
func (s *SleepMonitor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true

	monitorCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	conn, err := s.dial()
	if err != nil {
		s.logger.Error("Failed to connect to system bus", zap.Error(err))
		s.mu.Lock()
		defer s.mu.Unlock()
		s.running = false
		s.cancel = nil
		return fmt.Errorf("system bus connection failed: %w", err)
	}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.logger.Info("Sleep monitor stopped during D-Bus connection")
		if err := conn.Close(); err != nil {
			s.logger.Warn("Failed to close D-Bus connection", zap.Error(err))
		}
		return monitorCtx.Err()
	}
	s.conn = conn
	s.mu.Unlock()

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(logindPath),
		dbus.WithMatchInterface(logindManager),
		dbus.WithMatchMember("PrepareForSleep"),
	); err != nil {
		s.logger.Error("Failed to add PrepareForSleep match signal", zap.Error(err))
		return fmt.Errorf("failed to add match signal: %w", err)
	}

	s.acquireInhibitor()

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return monitorCtx.Err()
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go s.monitorSignals(monitorCtx, conn)

	s.logger.Info("Sleep monitor started")
	<-monitorCtx.Done()
	return monitorCtx.Err()
}

// Stop gracefully stops the monitor
func (s *SleepMonitor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	close(s.suspending)
	s.releaseInhibitor()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Warn("Failed to close D-Bus connection", zap.Error(err))
		}
	}

	s.logger.Info("Sleep monitor shutdown complete")
	return nil
}

// Suspending returns a channel notified when the system is about to sleep
func (s *SleepMonitor) Suspending() <-chan struct{} {
	return s.suspending
}

// SuspendHandled releases the delay lock so logind can proceed with the suspend
func (s *SleepMonitor) SuspendHandled() {
	s.releaseInhibitor()
}

// acquireInhibitor takes a logind delay lock so a suspend waits for the tile clear
func (s *SleepMonitor) acquireInhibitor() {
	s.mu.Lock()
	conn, held := s.conn, s.inhibitor != nil
	s.mu.Unlock()
	if conn == nil || held {
		return
	}

	lock, err := conn.Inhibit("sleep", inhibitWho, inhibitWhy, "delay")
	if err != nil {
		s.logger.Warn("Failed to take sleep inhibitor, suspend will not wait for the tile clear",
			zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.running && s.inhibitor == nil {
		s.inhibitor = lock
		lock = nil
	}
	s.mu.Unlock()

	// Stopped meanwhile, or another lock won
	if lock != nil {
		if err := lock.Close(); err != nil {
			s.logger.Warn("Failed to release sleep inhibitor", zap.Error(err))
		}
		return
	}
	s.logger.Debug("Sleep inhibitor taken")
}

func (s *SleepMonitor) releaseInhibitor() {
	s.mu.Lock()
	lock := s.inhibitor
	s.inhibitor = nil
	s.mu.Unlock()

	if lock == nil {
		return
	}
	if err := lock.Close(); err != nil {
		s.logger.Warn("Failed to release sleep inhibitor", zap.Error(err))
		return
	}
	s.logger.Debug("Sleep inhibitor released")
}

func (s *SleepMonitor) monitorSignals(ctx context.Context, conn DBusClient) {
	defer s.wg.Done()

	signals := make(chan *dbus.Signal, 4)
	conn.Signal(signals)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			if sig != nil {
				s.handleSignal(sig)
			}
		}
	}
}

// handleSignal emits on PrepareForSleep(true). PrepareForSleep(false) marks
// resume and re-takes the delay lock for the next suspend.
func (s *SleepMonitor) handleSignal(sig *dbus.Signal) {
	if sig.Name != prepareForSleep || len(sig.Body) < 1 {
		return
	}

	start, ok := sig.Body[0].(bool)
	if !ok {
		s.logger.Warn("Invalid PrepareForSleep payload, ignoring")
		return
	}
	if !start {
		s.logger.Info("System resumed from sleep")
		s.acquireInhibitor()
		return
	}

	s.logger.Info("System is about to sleep")
	select {
	case s.suspending <- struct{}{}:
	default:
	}
}
