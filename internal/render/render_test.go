package render

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/genricoloni/tilesync/internal/domain"
)

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name     string
		tmpl     string
		values   map[string]string
		expected string
	}{
		{
			name:     "All Placeholders",
			tmpl:     "<t>{songName}|{artistName}|{albumName}</t>",
			values:   map[string]string{SongName: "Song", ArtistName: "Artist", AlbumName: "Album"},
			expected: "<t>Song|Artist|Album</t>",
		},
		{
			name:     "Unknown Placeholder Untouched",
			tmpl:     "<t>{songName} {lyrics}</t>",
			values:   map[string]string{SongName: "Song"},
			expected: "<t>Song {lyrics}</t>",
		},
		{
			name:     "Missing Value Untouched",
			tmpl:     "<t>{albumName}</t>",
			values:   map[string]string{},
			expected: "<t>{albumName}</t>",
		},
		{
			name:     "Empty Value",
			tmpl:     `<image src="{albumPhoto}"/>`,
			values:   map[string]string{AlbumPhoto: ""},
			expected: `<image src=""/>`,
		},
		{
			name:     "Repeated Placeholder",
			tmpl:     "{songName}{songName}",
			values:   map[string]string{SongName: "x"},
			expected: "xx",
		},
		{
			name:     "Markup Characters Escaped",
			tmpl:     `<text a="{artistName}">{songName}</text>`,
			values:   map[string]string{SongName: "Rock & <Roll>", ArtistName: `"AC/DC"`},
			expected: `<text a="&#34;AC/DC&#34;">Rock &amp; &lt;Roll&gt;</text>`,
		},
		{
			name:     "Control Character Replaced",
			tmpl:     "<text>{songName}</text>",
			values:   map[string]string{SongName: "Track\x1bTitle"},
			expected: "<text>Track\uFFFDTitle</text>",
		},
		{
			name:     "Invalid UTF-8 Replaced",
			tmpl:     "<text>{songName}</text>",
			values:   map[string]string{SongName: "bad\xffutf8"},
			expected: "<text>bad\uFFFDutf8</text>",
		},
		{
			name:     "Substituted Text Not Rescanned",
			tmpl:     "{songName}",
			values:   map[string]string{SongName: "{artistName}", ArtistName: "nope"},
			expected: "{artistName}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Substitute(tt.tmpl, tt.values)
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestRender_EscapesMetadata(t *testing.T) {
	store, err := NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	tmpl, err := store.Load(domain.DesignAlbumAndArtistArt)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	status := domain.PlaybackStatus{
		TrackName:  "<script>alert(1)</script>",
		AlbumName:  "Tom & Jerry",
		ArtistName: "Guns N' Roses",
	}
	out, err := Render(tmpl, Values(status, "file:///tmp/a.jpg?x=1&y=2", ""))
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}

	s := string(out)
	for _, raw := range []string{"<script>", "Tom & Jerry", "x=1&y=2"} {
		if strings.Contains(s, raw) {
			t.Errorf("rendered output contains raw %q", raw)
		}
	}
	for _, encoded := range []string{"&lt;script&gt;", "Tom &amp; Jerry", "Guns N&#39; Roses"} {
		if !strings.Contains(s, encoded) {
			t.Errorf("rendered output missing %q", encoded)
		}
	}
	if strings.Contains(s, "{") {
		t.Errorf("rendered output has unreplaced placeholders: %s", s)
	}
}

func TestRender_UnencodableMetadata(t *testing.T) {
	tmpl := "<tile><text>{songName}</text><text>{artistName}</text></tile>"
	values := map[string]string{SongName: "Track\x1bTitle", ArtistName: "bad\xffutf8"}

	out, err := Render(tmpl, values)
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}
	if !strings.Contains(string(out), "Track\uFFFDTitle") || !strings.Contains(string(out), "bad\uFFFDutf8") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRender_Malformed(t *testing.T) {
	_, err := Render("<tile><visual>{songName}</tile>", map[string]string{SongName: "x"})
	if !errors.Is(err, ErrMalformedMarkup) {
		t.Errorf("expected ErrMalformedMarkup, got %v", err)
	}
}

func TestStore_BuiltIn(t *testing.T) {
	store, err := NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	for _, design := range []domain.Design{
		domain.DesignAlbumAndArtistArt,
		domain.DesignAlbumArtOnly,
		domain.DesignArtistArtOnly,
	} {
		t.Run(design.String(), func(t *testing.T) {
			tmpl, err := store.Load(design)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !strings.Contains(tmpl, "{songName}") {
				t.Errorf("template lacks {songName}: %s", tmpl)
			}
			if _, err := Render(tmpl, Values(domain.PlaybackStatus{TrackName: "t"}, "", "")); err != nil {
				t.Errorf("built-in template does not render: %v", err)
			}
		})
	}

	if _, err := store.Load(domain.DesignDisabled); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound for Disabled, got %v", err)
	}
}

func TestStore_Directory(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "TileTemplates"), 0755); err != nil {
		t.Fatal(err)
	}
	custom := "<tile>{albumName}</tile>"
	if err := os.WriteFile(filepath.Join(dir, "TileTemplates", "LiveTileAlbumArtOnly.xml"), []byte(custom), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	got, err := store.Load(domain.DesignAlbumArtOnly)
	if err != nil || got != custom {
		t.Errorf("expected custom template, got %q, %v", got, err)
	}

	// A template directory replaces the built-in set entirely
	if _, err := store.Load(domain.DesignArtistArtOnly); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
}
