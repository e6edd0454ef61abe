package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownDesign is returned by ParseDesign for names outside the Design enum
var ErrUnknownDesign = errors.New("unknown tile design")

// PlaybackStatus is a snapshot of what the media player is currently playing.
// The status source owns it; consumers only read copies.
type PlaybackStatus struct {
	// TrackName is the title of the current track
	TrackName string
	// AlbumName is the album of the current track
	AlbumName string
	// ArtistName is the (first) artist of the current track
	ArtistName string
	// AlbumID is the lookup key used to resolve album artwork
	AlbumID string
	// ArtistID is the lookup key used to resolve artist artwork
	ArtistID string
	// ArtURL is artwork supplied by the player itself, if any
	ArtURL string
	// IsPlaying reports whether playback is running
	IsPlaying bool
}

// Design selects which tile template is rendered
type Design int

const (
	// DesignDisabled means no tile is shown at all
	DesignDisabled Design = iota
	// DesignAlbumAndArtistArt shows both album and artist artwork
	DesignAlbumAndArtistArt
	// DesignAlbumArtOnly shows only album artwork
	DesignAlbumArtOnly
	// DesignArtistArtOnly shows only artist artwork
	DesignArtistArtOnly
)

var designNames = map[Design]string{
	DesignDisabled:          "Disabled",
	DesignAlbumAndArtistArt: "AlbumAndArtistArt",
	DesignAlbumArtOnly:      "AlbumArtOnly",
	DesignArtistArtOnly:     "ArtistArtOnly",
}

// Designs lists the selectable designs in the order they are offered to users
func Designs() []Design {
	return []Design{
		DesignAlbumAndArtistArt,
		DesignAlbumArtOnly,
		DesignArtistArtOnly,
		DesignDisabled,
	}
}

func (d Design) String() string {
	if name, ok := designNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Design(%d)", int(d))
}

// ParseDesign maps a design name (case-insensitive) to its Design value
func ParseDesign(name string) (Design, error) {
	name = strings.TrimSpace(name)
	for d, n := range designNames {
		if strings.EqualFold(n, name) {
			return d, nil
		}
	}
	return DesignDisabled, fmt.Errorf("%w: %q", ErrUnknownDesign, name)
}

// RenderedContent is the canonical markup produced by one update cycle
type RenderedContent string
