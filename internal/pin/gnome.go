// Package pin manages the application's launcher entry in the GNOME dock.
package pin

import (
	"context"
	"fmt"
	"os/exec"
	"slices"
	"strings"

	"go.uber.org/zap"
)

const (
	shellSchema  = "org.gnome.shell"
	favoritesKey = "favorite-apps"
)

// Runner executes a command and returns its standard output
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// GnomeDock pins the application by adding its desktop entry to the
// GNOME Shell favourites, which is what the dock shows
type GnomeDock struct {
	logger    *zap.Logger
	desktopID string
	run       Runner
	lookPath  func(string) (string, error)
}

// NewGnomeDock creates a pin manager for the <appID>.desktop entry
func NewGnomeDock(logger *zap.Logger, appID string) *GnomeDock {
	return &GnomeDock{
		logger:    logger,
		desktopID: appID + ".desktop",
		run:       execRunner,
		lookPath:  exec.LookPath,
	}
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		var stderr string
		if ee, ok := err.(*exec.ExitError); ok {
			stderr = strings.TrimSpace(string(ee.Stderr))
		}
		return nil, fmt.Errorf("%s %s: %w (stderr: %s)", name, strings.Join(args, " "), err, stderr)
	}
	return out, nil
}

// CanPin reports whether the favourites list exists and is writable.
// Desktops without GNOME Shell simply do not support pinning.
func (g *GnomeDock) CanPin(ctx context.Context) (bool, error) {
	if _, err := g.lookPath("gsettings"); err != nil {
		g.logger.Debug("gsettings not found, pinning unsupported")
		return false, nil
	}

	out, err := g.run(ctx, "gsettings", "writable", shellSchema, favoritesKey)
	if err != nil {
		g.logger.Debug("GNOME Shell favourites unavailable", zap.Error(err))
		return false, nil
	}
	return strings.TrimSpace(string(out)) == "true", nil
}

// IsPinned reports whether the desktop entry is among the favourites
func (g *GnomeDock) IsPinned(ctx context.Context) (bool, error) {
	favorites, err := g.favorites(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(favorites, g.desktopID), nil
}

// RequestPin appends the desktop entry to the favourites unless it is there already
func (g *GnomeDock) RequestPin(ctx context.Context) (bool, error) {
	favorites, err := g.favorites(ctx)
	if err != nil {
		return false, err
	}
	if slices.Contains(favorites, g.desktopID) {
		return true, nil
	}

	favorites = append(favorites, g.desktopID)
	if _, err := g.run(ctx, "gsettings", "set", shellSchema, favoritesKey, formatStrv(favorites)); err != nil {
		return false, fmt.Errorf("failed to update favourites: %w", err)
	}

	g.logger.Info("Pinned to dock", zap.String("entry", g.desktopID))
	return true, nil
}

func (g *GnomeDock) favorites(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "gsettings", "get", shellSchema, favoritesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read favourites: %w", err)
	}
	return parseStrv(string(out))
}

// parseStrv parses a GVariant string array as printed by gsettings,
// e.g. ['a.desktop', 'b.desktop'] or @as [] when empty
func parseStrv(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "@as ")
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("unexpected string array %q", s)
	}

	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return nil, nil
	}

	var items []string
	for _, part := range strings.Split(inner, ",") {
		part = strings.TrimSpace(part)
		if len(part) < 2 || (part[0] != '\'' && part[0] != '"') || part[len(part)-1] != part[0] {
			return nil, fmt.Errorf("unexpected string array element %q", part)
		}
		items = append(items, part[1:len(part)-1])
	}
	return items, nil
}

func formatStrv(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = "'" + item + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
