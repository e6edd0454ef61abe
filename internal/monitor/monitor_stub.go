//go:build !linux
// +build !linux

package monitor

import (
	"context"
	"fmt"

	"github.com/genricoloni/tilesync/internal/domain"
	"go.uber.org/zap"
)

// MprisMonitor stub for non-Linux platforms
type MprisMonitor struct {
	logger *zap.Logger
}

// NewMprisMonitor creates a stub monitor that returns an error on non-Linux platforms
func NewMprisMonitor(logger *zap.Logger) *MprisMonitor {
	return &MprisMonitor{logger: logger}
}

// Start returns an error indicating MPRIS monitoring is not supported on this platform
func (m *MprisMonitor) Start(ctx context.Context) error {
	return fmt.Errorf("MPRIS monitoring is only supported on Linux systems")
}

// Stop is a no-op on non-Linux platforms
func (m *MprisMonitor) Stop(ctx context.Context) error {
	return nil
}

// Changes returns a nil channel, no change is ever reported
func (m *MprisMonitor) Changes() <-chan struct{} {
	return nil
}

// Current always returns an empty status
func (m *MprisMonitor) Current() domain.PlaybackStatus {
	return domain.PlaybackStatus{}
}

// SleepMonitor stub for non-Linux platforms
type SleepMonitor struct {
	logger *zap.Logger
}

// NewSleepMonitor creates a stub sleep monitor
func NewSleepMonitor(logger *zap.Logger) *SleepMonitor {
	return &SleepMonitor{logger: logger}
}

// Start returns an error indicating logind is not available on this platform
func (s *SleepMonitor) Start(ctx context.Context) error {
	return fmt.Errorf("sleep monitoring is only supported on Linux systems")
}

// Stop is a no-op on non-Linux platforms
func (s *SleepMonitor) Stop(ctx context.Context) error {
	return nil
}

// Suspending returns a nil channel
func (s *SleepMonitor) Suspending() <-chan struct{} {
	return nil
}

// SuspendHandled is a no-op on non-Linux platforms
func (s *SleepMonitor) SuspendHandled() {}
