package monitor

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// lookupKey normalizes names into an artwork lookup key so that
// "Björk", "BJÖRK" and "björk " resolve to the same artwork.
func lookupKey(parts ...string) string {
	// Casers are stateful, one per call
	folder := cases.Fold()
	var words []string
	for _, p := range parts {
		p = folder.String(norm.NFKC.String(p))
		words = append(words, strings.Fields(p)...)
	}
	return strings.Join(words, " ")
}

// artistKey is the ArtistID of a track
func artistKey(artist string) string {
	return lookupKey(artist)
}

// albumKey is the AlbumID of a track; albums are only unique per artist
func albumKey(artist, album string) string {
	if strings.TrimSpace(album) == "" {
		return ""
	}
	return lookupKey(artist, album)
}
