//go:build linux

package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/genricoloni/tilesync/internal/domain"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	mprisPrefix     = "org.mpris.MediaPlayer2."
	mprisPath       = "/org/mpris/MediaPlayer2"
	mprisPlayer     = "org.mpris.MediaPlayer2.Player"
	propMetadata    = "org.mpris.MediaPlayer2.Player.Metadata"
	propPlayStatus  = "org.mpris.MediaPlayer2.Player.PlaybackStatus"
	propertiesEvent = "org.freedesktop.DBus.Properties.PropertiesChanged"
	ownerEvent      = "org.freedesktop.DBus.NameOwnerChanged"
)

// MprisMonitor monitors media playback via D-Bus MPRIS interface
type MprisMonitor struct {
	logger      *zap.Logger
	changes     chan struct{}
	mu          sync.RWMutex
	running     bool
	cancel      context.CancelFunc
	dial        func() (DBusClient, error)
	conn        DBusClient        // Interface for testability
	current     domain.PlaybackStatus
	wg          sync.WaitGroup    // Tracks active producer goroutines
	playerNames map[string]string // Maps unique bus names (:1.45) to well-known names (org.mpris.MediaPlayer2.spotify)
}

// NewMprisMonitor creates a new MPRIS monitor instance
func NewMprisMonitor(logger *zap.Logger) *MprisMonitor {
	return &MprisMonitor{
		logger: logger,
		// Capacity 1: a pending notification already covers any later change
		changes:     make(chan struct{}, 1),
		dial:        NewSessionDBusClient,
		playerNames: make(map[string]string),
	}
}

// Start begins monitoring for media events
func (m *MprisMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true

	monitorCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.logger.Info("MPRIS monitor started")

	// Connect to Session Bus (this may block)
	conn, err := m.dial()
	if err != nil {
		m.logger.Error("Failed to connect to session bus", zap.Error(err))
		m.mu.Lock()
		defer m.mu.Unlock()
		m.running = false
		m.cancel = nil
		return fmt.Errorf("session bus connection failed: %w", err)
	}

	// Stop may have run while connecting: check and register under one lock
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		m.logger.Info("Monitor stopped during D-Bus connection")
		if err := conn.Close(); err != nil {
			m.logger.Warn("Failed to close D-Bus connection", zap.Error(err))
		}
		return monitorCtx.Err()
	}
	m.conn = conn
	m.wg.Add(1)
	m.mu.Unlock()

	func() {
		defer m.wg.Done()
		if err := m.detectExistingPlayers(); err != nil {
			m.logger.Warn("Failed to detect existing players", zap.Error(err))
		}
	}()

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(mprisPath),
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		m.logger.Error("Failed to add match signal", zap.Error(err))
		return fmt.Errorf("failed to add match signal: %w", err)
	}

	// Track new/removed players dynamically
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	); err != nil {
		m.logger.Warn("Failed to add NameOwnerChanged match signal", zap.Error(err))
	} else {
		m.logger.Info("Dynamic player tracking enabled via NameOwnerChanged")
	}

	if !m.track() {
		return monitorCtx.Err()
	}
	go m.monitorSignals(monitorCtx)

	<-monitorCtx.Done()

	m.logger.Info("MPRIS monitor stopped")
	return monitorCtx.Err()
}

// Stop gracefully stops the monitor
func (m *MprisMonitor) Stop(ctx context.Context) error {
	m.mu.Lock()

	if !m.running {
		m.mu.Unlock()
		return nil
	}

	if m.cancel != nil {
		m.cancel()
	}

	m.running = false
	m.mu.Unlock()

	// Wait for all producer goroutines before closing the channel
	m.logger.Debug("Waiting for monitoring goroutines to finish")
	m.wg.Wait()

	close(m.changes)

	m.mu.Lock()
	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			m.logger.Warn("Failed to close D-Bus connection", zap.Error(err))
		}
	}
	m.mu.Unlock()

	m.logger.Info("MPRIS monitor shutdown complete")
	return nil
}

// track registers a producer goroutine, unless the monitor was stopped
func (m *MprisMonitor) track() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return false
	}
	m.wg.Add(1)
	return true
}

// Changes returns a channel notified whenever the playback status changes
func (m *MprisMonitor) Changes() <-chan struct{} {
	return m.changes
}

// Current returns the most recently observed playback status
func (m *MprisMonitor) Current() domain.PlaybackStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// update stores a new snapshot and notifies without blocking.
// If a notification is already pending the consumer will read this snapshot anyway.
func (m *MprisMonitor) update(status domain.PlaybackStatus) {
	m.mu.Lock()
	m.current = status
	m.mu.Unlock()

	select {
	case m.changes <- struct{}{}:
	default:
		m.logger.Debug("Change notification already pending",
			zap.String("track", status.TrackName))
	}
}

// detectExistingPlayers queries D-Bus for currently running MPRIS players
func (m *MprisMonitor) detectExistingPlayers() error {
	names, err := m.conn.ListNames()
	if err != nil {
		return fmt.Errorf("failed to list bus names: %w", err)
	}

	playerCount := 0
	for _, name := range names {
		if !strings.HasPrefix(name, mprisPrefix) {
			continue
		}
		playerCount++
		m.logger.Info("Detected MPRIS player", zap.String("name", name))

		uniqueName, err := m.conn.GetNameOwner(name)
		if err == nil {
			m.mu.Lock()
			m.playerNames[uniqueName] = name
			m.mu.Unlock()
			m.logger.Debug("Mapped player name",
				zap.String("unique", uniqueName),
				zap.String("wellKnown", name))
		}

		if err := m.fetchPlayerMetadata(name); err != nil {
			m.logger.Warn("Failed to fetch initial metadata",
				zap.String("player", name),
				zap.Error(err))
		}
	}

	m.logger.Info("Player detection complete", zap.Int("count", playerCount))
	return nil
}

// fetchPlayerMetadata reads metadata and status from a specific player and records them
func (m *MprisMonitor) fetchPlayerMetadata(playerName string) error {
	variant, err := m.conn.GetProperty(playerName, mprisPath, propMetadata)
	if err != nil {
		return fmt.Errorf("failed to get metadata: %w", err)
	}

	// Some players return nil or unexpected types when idle
	metadata, ok := variant.Value().(map[string]dbus.Variant)
	if !ok {
		m.logger.Debug("Metadata variant is not a map, skipping", zap.String("player", playerName))
		return nil
	}

	statusVariant, err := m.conn.GetProperty(playerName, mprisPath, propPlayStatus)
	if err != nil {
		return fmt.Errorf("failed to get playback status: %w", err)
	}

	status, ok := statusVariant.Value().(string)
	if !ok {
		return fmt.Errorf("invalid playback status format")
	}

	playback := m.parseMetadata(metadata, status)
	m.update(playback)
	m.logger.Debug("Recorded initial metadata", zap.String("title", playback.TrackName))

	return nil
}

// monitorSignals listens for D-Bus signals and processes them
func (m *MprisMonitor) monitorSignals(ctx context.Context) {
	defer m.wg.Done()

	signals := make(chan *dbus.Signal, 10)
	m.conn.Signal(signals)

	m.logger.Info("Signal monitoring goroutine started")

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Signal monitoring goroutine stopped")
			return
		case sig := <-signals:
			if sig == nil {
				continue
			}
			if sig.Name == ownerEvent {
				m.handleNameOwnerChanged(sig)
			} else {
				m.handleSignal(sig)
			}
		}
	}
}

// handleNameOwnerChanged processes NameOwnerChanged signals to track player lifecycle
func (m *MprisMonitor) handleNameOwnerChanged(sig *dbus.Signal) {
	if len(sig.Body) < 3 {
		return
	}

	name, ok := sig.Body[0].(string)
	if !ok || !strings.HasPrefix(name, mprisPrefix) {
		return
	}

	oldOwner, _ := sig.Body[1].(string)
	newOwner, _ := sig.Body[2].(string)

	switch {
	case newOwner != "" && oldOwner == "":
		m.mu.Lock()
		m.playerNames[newOwner] = name
		m.mu.Unlock()

		m.logger.Info("New MPRIS player detected",
			zap.String("player", name),
			zap.String("unique", newOwner))

		if err := m.fetchPlayerMetadata(name); err != nil {
			m.logger.Warn("Failed to fetch metadata from new player",
				zap.String("player", name),
				zap.Error(err))
		}
	case newOwner == "" && oldOwner != "":
		m.mu.Lock()
		delete(m.playerNames, oldOwner)
		m.mu.Unlock()

		m.logger.Info("MPRIS player removed",
			zap.String("player", name),
			zap.String("unique", oldOwner))
	case newOwner != "" && oldOwner != "":
		m.mu.Lock()
		delete(m.playerNames, oldOwner)
		m.playerNames[newOwner] = name
		m.mu.Unlock()

		m.logger.Debug("MPRIS player ownership changed",
			zap.String("player", name),
			zap.String("oldUnique", oldOwner),
			zap.String("newUnique", newOwner))
	}
}

// handleSignal processes a PropertiesChanged signal.
// Body: interface name, changed properties, invalidated properties.
func (m *MprisMonitor) handleSignal(sig *dbus.Signal) {
	if sig.Name != propertiesEvent {
		return
	}

	if len(sig.Body) < 2 {
		return
	}

	interfaceName, ok := sig.Body[0].(string)
	if !ok || interfaceName != mprisPlayer {
		return
	}

	changedProps, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	playerName := m.getPlayerName(sig.Sender)

	m.logger.Debug("Received PropertiesChanged signal",
		zap.String("sender", sig.Sender),
		zap.String("player", playerName),
		zap.Int("properties", len(changedProps)))

	metadataVariant, hasMetadata := changedProps["Metadata"]
	statusVariant, hasStatus := changedProps["PlaybackStatus"]

	if !hasMetadata && !hasStatus {
		return
	}

	var metadata map[string]dbus.Variant
	var status string

	if hasMetadata {
		metadata, ok = metadataVariant.Value().(map[string]dbus.Variant)
		if !ok {
			m.logger.Warn("Invalid metadata format in signal, ignoring")
			return
		}
	}

	if hasStatus {
		status, ok = statusVariant.Value().(string)
		if !ok {
			m.logger.Warn("Invalid playback status format in signal, ignoring")
			return
		}
	} else {
		variant, err := m.conn.GetProperty(sig.Sender, mprisPath, propPlayStatus)
		if err == nil {
			if s, ok := variant.Value().(string); ok {
				status = s
			}
		}
	}

	// Status-only change: the metadata is still needed to render the tile
	if !hasMetadata {
		variant, err := m.conn.GetProperty(sig.Sender, mprisPath, propMetadata)
		if err == nil {
			if md, ok := variant.Value().(map[string]dbus.Variant); ok {
				metadata = md
			}
		}
	}

	playback := m.parseMetadata(metadata, status)
	m.update(playback)

	m.logger.Info("Media change detected",
		zap.String("player", playerName),
		zap.String("title", playback.TrackName),
		zap.String("artist", playback.ArtistName),
		zap.Bool("playing", playback.IsPlaying))
}

// parseMetadata converts MPRIS metadata to a playback status
func (m *MprisMonitor) parseMetadata(metadata map[string]dbus.Variant, status string) domain.PlaybackStatus {
	var playback domain.PlaybackStatus
	playback.IsPlaying = status == "Playing"

	if metadata == nil {
		return playback
	}

	if titleVar, ok := metadata["xesam:title"]; ok {
		if title, ok := titleVar.Value().(string); ok {
			playback.TrackName = title
		}
	}

	playback.ArtistName = m.firstArtist(metadata["xesam:artist"])
	if playback.ArtistName == "" {
		playback.ArtistName = m.firstArtist(metadata["xesam:albumArtist"])
	}

	if albumVar, ok := metadata["xesam:album"]; ok {
		if album, ok := albumVar.Value().(string); ok {
			playback.AlbumName = album
		}
	}

	if artVar, ok := metadata["mpris:artUrl"]; ok {
		if artURL, ok := artVar.Value().(string); ok {
			if artURL == "" {
				// Browsers and local files often send an empty artUrl
				m.logger.Debug("Empty artUrl received",
					zap.String("title", playback.TrackName),
					zap.String("artist", playback.ArtistName))
			}
			playback.ArtURL = artURL
		}
	}

	playback.ArtistID = artistKey(playback.ArtistName)
	playback.AlbumID = albumKey(playback.ArtistName, playback.AlbumName)

	return playback
}

// firstArtist extracts an artist from an xesam list (or a non-compliant plain string)
func (m *MprisMonitor) firstArtist(v dbus.Variant) string {
	switch artists := v.Value().(type) {
	case nil:
		return ""
	case []string:
		if len(artists) > 0 {
			return artists[0]
		}
	case string:
		return artists
	default:
		m.logger.Debug("Unexpected artist type in metadata",
			zap.String("type", fmt.Sprintf("%T", v.Value())))
	}
	return ""
}

// getPlayerName returns the well-known player name for a unique bus name
// Falls back to the unique name if no mapping exists
func (m *MprisMonitor) getPlayerName(uniqueName string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if wellKnown, ok := m.playerNames[uniqueName]; ok {
		return wellKnown
	}
	return uniqueName
}
