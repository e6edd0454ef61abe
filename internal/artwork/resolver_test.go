package artwork

import (
	"context"
	"errors"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

type stubLookup struct {
	artist, album string
	err           error
	calls         atomic.Int32
}

func (s *stubLookup) ArtistImage(ctx context.Context, query string) (string, error) {
	s.calls.Add(1)
	return s.artist, s.err
}

func (s *stubLookup) AlbumCover(ctx context.Context, query string) (string, error) {
	s.calls.Add(1)
	return s.album, s.err
}

type stubFetcher struct {
	err   error
	calls atomic.Int32
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	s.calls.Add(1)
	return []byte("raw:" + url), s.err
}

type stubProcessor struct{}

func (stubProcessor) Process(ctx context.Context, data []byte) ([]byte, error) {
	return append([]byte("thumb:"), data...), nil
}

func newTestResolver(t *testing.T, lookup *stubLookup, fetch *stubFetcher) *Resolver {
	t.Helper()
	return NewResolver(zap.NewNop(), lookup, fetch, stubProcessor{}, t.TempDir())
}

// pathOf converts a file:// locator back to a path
func pathOf(t *testing.T, locator string) string {
	t.Helper()
	u, err := url.Parse(locator)
	if err != nil || u.Scheme != "file" {
		t.Fatalf("expected file:// locator, got %q", locator)
	}
	return u.Path
}

func TestResolver_ResolveArtistArt_DownloadsOnce(t *testing.T) {
	lookup := &stubLookup{artist: "https://cdn.example/queen.jpg"}
	fetch := &stubFetcher{}
	r := newTestResolver(t, lookup, fetch)

	first, err := r.ResolveArtistArt(context.Background(), "queen")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(pathOf(t, first))
	if err != nil {
		t.Fatalf("cached artwork missing: %v", err)
	}
	if string(data) != "thumb:raw:https://cdn.example/queen.jpg" {
		t.Errorf("unexpected cached content %q", data)
	}

	second, err := r.ResolveArtistArt(context.Background(), "queen")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("expected stable locator, got %q then %q", first, second)
	}
	if lookup.calls.Load() != 1 {
		t.Errorf("expected 1 catalog lookup, got %d", lookup.calls.Load())
	}
	if fetch.calls.Load() != 1 {
		t.Errorf("expected 1 download, got %d", fetch.calls.Load())
	}
}

func TestResolver_NotFoundIsEmpty(t *testing.T) {
	lookup := &stubLookup{}
	r := newTestResolver(t, lookup, &stubFetcher{})

	got, err := r.ResolveAlbumArt(context.Background(), "nobody nothing")
	if err != nil || got != "" {
		t.Errorf("expected empty locator without error, got %q, %v", got, err)
	}

	// The miss is remembered
	_, _ = r.ResolveAlbumArt(context.Background(), "nobody nothing")
	if lookup.calls.Load() != 1 {
		t.Errorf("expected 1 catalog lookup, got %d", lookup.calls.Load())
	}
}

func TestResolver_EmptyIDSkipsLookup(t *testing.T) {
	lookup := &stubLookup{artist: "https://cdn.example/x.jpg"}
	r := newTestResolver(t, lookup, &stubFetcher{})

	got, err := r.ResolveArtistArt(context.Background(), "")
	if err != nil || got != "" {
		t.Errorf("expected empty locator, got %q, %v", got, err)
	}
	if lookup.calls.Load() != 0 {
		t.Error("lookup should not be called for an empty id")
	}
}

func TestResolver_LookupErrorNotRemembered(t *testing.T) {
	lookup := &stubLookup{err: errors.New("catalog down")}
	r := newTestResolver(t, lookup, &stubFetcher{})

	if _, err := r.ResolveArtistArt(context.Background(), "queen"); err == nil {
		t.Fatal("expected lookup error")
	}

	lookup.err = nil
	lookup.artist = "https://cdn.example/queen.jpg"
	got, err := r.ResolveArtistArt(context.Background(), "queen")
	if err != nil || got == "" {
		t.Errorf("expected recovery after lookup error, got %q, %v", got, err)
	}
}

func TestResolver_LocalizeArt(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    string
		expectError bool
		downloaded  bool
	}{
		{name: "Empty", input: "", expected: ""},
		{name: "File URI Passes Through", input: "file:///home/me/cover.png", expected: "file:///home/me/cover.png"},
		{name: "Absolute Path", input: "/home/me/cover.png", expected: "file:///home/me/cover.png"},
		{name: "Unsupported Scheme", input: "data:image/png;base64,AAAA", expectError: true},
		{name: "Remote", input: "https://i.scdn.example/image/ab67", downloaded: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetch := &stubFetcher{}
			r := newTestResolver(t, &stubLookup{}, fetch)

			got, err := r.LocalizeArt(context.Background(), tt.input)
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.downloaded {
				if !strings.HasPrefix(got, "file://") || !strings.HasSuffix(got, ".jpg") {
					t.Errorf("expected cached jpeg locator, got %q", got)
				}
				if fetch.calls.Load() != 1 {
					t.Errorf("expected 1 download, got %d", fetch.calls.Load())
				}
				return
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
			if fetch.calls.Load() != 0 {
				t.Error("local artwork must not be downloaded")
			}
		})
	}
}

func TestResolver_FetchFailure(t *testing.T) {
	lookup := &stubLookup{album: "https://cdn.example/cover.jpg"}
	r := newTestResolver(t, lookup, &stubFetcher{err: errors.New("404")})

	if _, err := r.ResolveAlbumArt(context.Background(), "queen jazz"); err == nil {
		t.Error("expected fetch failure to be reported")
	}
}
