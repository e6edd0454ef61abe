// Package render turns tile templates and playback values into tile markup.
package render

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/genricoloni/tilesync/internal/domain"
)

// ErrMalformedMarkup is returned when substitution produced invalid XML
var ErrMalformedMarkup = errors.New("rendered tile is not well-formed")

// Placeholder names understood by the tile templates
const (
	AlbumName   = "albumName"
	ArtistName  = "artistName"
	SongName    = "songName"
	ArtistPhoto = "artistPhoto"
	AlbumPhoto  = "albumPhoto"
)

// Values builds the placeholder set for a playback snapshot and its artwork
func Values(status domain.PlaybackStatus, artistPhoto, albumPhoto string) map[string]string {
	return map[string]string{
		AlbumName:   status.AlbumName,
		ArtistName:  status.ArtistName,
		SongName:    status.TrackName,
		ArtistPhoto: artistPhoto,
		AlbumPhoto:  albumPhoto,
	}
}

// Substitute replaces every {name} placeholder that has a value with the
// escaped value. Placeholders without a value are left as they are and
// substituted text is never scanned again.
func Substitute(tmpl string, values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", escape(values[k]))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// escape encodes s as XML character data. Characters XML cannot carry,
// such as control codes and invalid UTF-8, become U+FFFD.
func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s)) // strings.Builder never fails
	return b.String()
}

// Render substitutes values into tmpl and checks the result is well-formed XML
func Render(tmpl string, values map[string]string) (domain.RenderedContent, error) {
	out := Substitute(tmpl, values)

	dec := xml.NewDecoder(strings.NewReader(out))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedMarkup, err)
		}
	}
	return domain.RenderedContent(out), nil
}
