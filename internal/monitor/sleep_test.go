//go:build linux

package monitor

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/genricoloni/tilesync/internal/monitor/mocks"
	"github.com/godbus/dbus/v5"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func TestSleepMonitor_HandleSignal(t *testing.T) {
	tests := []struct {
		name      string
		signal    *dbus.Signal
		expectHit bool
	}{
		{
			name:      "Going To Sleep",
			signal:    &dbus.Signal{Name: prepareForSleep, Body: []interface{}{true}},
			expectHit: true,
		},
		{
			name:   "Resumed",
			signal: &dbus.Signal{Name: prepareForSleep, Body: []interface{}{false}},
		},
		{
			name:   "Wrong Payload Type",
			signal: &dbus.Signal{Name: prepareForSleep, Body: []interface{}{"true"}},
		},
		{
			name:   "Empty Body",
			signal: &dbus.Signal{Name: prepareForSleep},
		},
		{
			name:   "Other Signal",
			signal: &dbus.Signal{Name: "org.freedesktop.login1.Manager.SessionNew", Body: []interface{}{true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mon := NewSleepMonitor(zap.NewNop())
			mon.handleSignal(tt.signal)

			select {
			case <-mon.Suspending():
				if !tt.expectHit {
					t.Error("Unexpected suspend notification")
				}
			default:
				if tt.expectHit {
					t.Error("Expected suspend notification")
				}
			}
		})
	}
}

func TestSleepMonitor_CoalescesNotifications(t *testing.T) {
	mon := NewSleepMonitor(zap.NewNop())
	sig := &dbus.Signal{Name: prepareForSleep, Body: []interface{}{true}}

	mon.handleSignal(sig)
	mon.handleSignal(sig) // must not block

	if got := len(mon.Suspending()); got != 1 {
		t.Errorf("Expected 1 pending notification, got %d", got)
	}
}

type fakeLock struct {
	closed atomic.Int32
}

func (l *fakeLock) Close() error {
	l.closed.Add(1)
	return nil
}

// TestSleepMonitor_Inhibitor follows the delay lock through a suspend and resume
func TestSleepMonitor_Inhibitor(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	first, second := &fakeLock{}, &fakeLock{}
	retaken := make(chan struct{})
	subscribed := make(chan chan<- *dbus.Signal, 1)

	mockClient := mocks.NewMockDBusClient(ctrl)
	mockClient.EXPECT().AddMatchSignal(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	gomock.InOrder(
		mockClient.EXPECT().Inhibit("sleep", inhibitWho, inhibitWhy, "delay").Return(first, nil),
		mockClient.EXPECT().Inhibit("sleep", inhibitWho, inhibitWhy, "delay").
			DoAndReturn(func(string, string, string, string) (io.Closer, error) {
				close(retaken)
				return second, nil
			}),
	)
	mockClient.EXPECT().Signal(gomock.Any()).Do(func(ch chan<- *dbus.Signal) { subscribed <- ch })
	mockClient.EXPECT().Close().Return(nil)

	mon := NewSleepMonitor(zap.NewNop())
	mon.dial = func() (DBusClient, error) { return mockClient, nil }

	done := make(chan error, 1)
	go func() { done <- mon.Start(context.Background()) }()

	var signals chan<- *dbus.Signal
	select {
	case signals = <-subscribed:
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for monitor to subscribe")
	}

	signals <- &dbus.Signal{Name: prepareForSleep, Body: []interface{}{true}}
	select {
	case <-mon.Suspending():
	case <-time.After(time.Second):
		t.Fatal("Expected suspend notification")
	}
	if first.closed.Load() != 0 {
		t.Fatal("Inhibitor released before the suspend was handled")
	}

	mon.SuspendHandled()
	if got := first.closed.Load(); got != 1 {
		t.Fatalf("Expected the inhibitor released once, got %d", got)
	}
	mon.SuspendHandled() // nothing left to release

	signals <- &dbus.Signal{Name: prepareForSleep, Body: []interface{}{false}}
	select {
	case <-retaken:
	case <-time.After(time.Second):
		t.Fatal("Inhibitor was not taken again after resume")
	}

	if err := mon.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled from Start, got %v", err)
	}
	if got := second.closed.Load(); got != 1 {
		t.Errorf("Expected the resumed inhibitor released on Stop, got %d", got)
	}
	if got := first.closed.Load(); got != 1 {
		t.Errorf("First inhibitor closed %d times", got)
	}
}

// TestSleepMonitor_InhibitFailure verifies suspend notifications still flow without a lock
func TestSleepMonitor_InhibitFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	subscribed := make(chan struct{})
	mockClient := mocks.NewMockDBusClient(ctrl)
	mockClient.EXPECT().AddMatchSignal(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	mockClient.EXPECT().Inhibit(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("access denied"))
	mockClient.EXPECT().Signal(gomock.Any()).Do(func(chan<- *dbus.Signal) { close(subscribed) })
	mockClient.EXPECT().Close().Return(nil)

	mon := NewSleepMonitor(zap.NewNop())
	mon.dial = func() (DBusClient, error) { return mockClient, nil }

	done := make(chan error, 1)
	go func() { done <- mon.Start(context.Background()) }()

	select {
	case <-subscribed:
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for monitor to subscribe")
	}

	mon.handleSignal(&dbus.Signal{Name: prepareForSleep, Body: []interface{}{true}})
	if _, ok := <-mon.Suspending(); !ok {
		t.Fatal("Expected suspend notification")
	}
	mon.SuspendHandled()

	if err := mon.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	<-done
}

// TestSleepMonitor_StoppedWhileConnecting verifies a Stop during dial closes the
// new connection before any lock or subscription is taken
func TestSleepMonitor_StoppedWhileConnecting(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mocks.NewMockDBusClient(ctrl)
	mockClient.EXPECT().Close().Return(nil).Times(1)

	mon := NewSleepMonitor(zap.NewNop())
	mon.dial = func() (DBusClient, error) {
		if err := mon.Stop(context.Background()); err != nil {
			t.Errorf("Stop failed: %v", err)
		}
		return mockClient, nil
	}

	if err := mon.Start(context.Background()); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled from Start, got %v", err)
	}
	if _, ok := <-mon.Suspending(); ok {
		t.Error("Suspending channel should be closed after Stop")
	}
}
