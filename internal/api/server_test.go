package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/genricoloni/tilesync/internal/domain"
	"go.uber.org/zap"
)

type fakeController struct {
	pinned, canPin bool
	err            error
	refreshes      atomic.Int32
	clears         atomic.Int32
}

func (f *fakeController) QueryPinned(ctx context.Context) (bool, error) { return f.pinned, f.err }
func (f *fakeController) QueryCanPin(ctx context.Context) (bool, error) { return f.canPin, f.err }

func (f *fakeController) RequestPin(ctx context.Context) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.pinned = true
	return true, nil
}

func (f *fakeController) OnStatusChanged() { f.refreshes.Add(1) }

func (f *fakeController) Clear(ctx context.Context) error {
	f.clears.Add(1)
	return f.err
}

type fakeDesigns struct {
	design domain.Design
	err    error
}

func (f *fakeDesigns) CurrentDesign() domain.Design { return f.design }

func (f *fakeDesigns) SetDesign(d domain.Design) error {
	if f.err != nil {
		return f.err
	}
	f.design = d
	return nil
}

func TestServer_Routes(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		ctrl           *fakeController
		designs        *fakeDesigns
		expectedStatus int
		expectedBody   string
		refreshes      int32
	}{
		{
			name:           "Health",
			method:         http.MethodGet,
			path:           "/healthz",
			expectedStatus: http.StatusOK,
			expectedBody:   "ok",
		},
		{
			name:           "Pin State",
			method:         http.MethodGet,
			path:           "/v1/pin",
			ctrl:           &fakeController{pinned: true},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"pinned":true}`,
		},
		{
			name:           "Pin Supported",
			method:         http.MethodGet,
			path:           "/v1/pin/supported",
			ctrl:           &fakeController{canPin: false},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"supported":false}`,
		},
		{
			name:           "Request Pin",
			method:         http.MethodPost,
			path:           "/v1/pin",
			expectedStatus: http.StatusOK,
			expectedBody:   `{"pinned":true}`,
		},
		{
			name:           "Pin Failure",
			method:         http.MethodGet,
			path:           "/v1/pin",
			ctrl:           &fakeController{err: errors.New("dock unavailable")},
			expectedStatus: http.StatusBadGateway,
			expectedBody:   `{"error":"dock unavailable"}`,
		},
		{
			name:           "Refresh",
			method:         http.MethodPost,
			path:           "/v1/tile/refresh",
			expectedStatus: http.StatusAccepted,
			refreshes:      1,
		},
		{
			name:           "Clear",
			method:         http.MethodDelete,
			path:           "/v1/tile",
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "Clear Failure",
			method:         http.MethodDelete,
			path:           "/v1/tile",
			ctrl:           &fakeController{err: errors.New("bus gone")},
			expectedStatus: http.StatusBadGateway,
		},
		{
			name:           "Get Design",
			method:         http.MethodGet,
			path:           "/v1/design",
			designs:        &fakeDesigns{design: domain.DesignArtistArtOnly},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"design":"ArtistArtOnly"}`,
		},
		{
			name:           "Set Design",
			method:         http.MethodPut,
			path:           "/v1/design",
			body:           `{"design":"albumartonly"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"design":"AlbumArtOnly"}`,
			refreshes:      1,
		},
		{
			name:           "Set Unknown Design",
			method:         http.MethodPut,
			path:           "/v1/design",
			body:           `{"design":"Huge"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Set Design Bad JSON",
			method:         http.MethodPut,
			path:           "/v1/design",
			body:           `{"design":`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Set Design Save Failure",
			method:         http.MethodPut,
			path:           "/v1/design",
			body:           `{"design":"Disabled"}`,
			designs:        &fakeDesigns{err: errors.New("read-only file system")},
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "Unknown Route",
			method:         http.MethodGet,
			path:           "/v1/nothing",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := tt.ctrl
			if ctrl == nil {
				ctrl = &fakeController{}
			}
			designs := tt.designs
			if designs == nil {
				designs = &fakeDesigns{design: domain.DesignAlbumAndArtistArt}
			}
			s := NewServer(zap.NewNop(), "", ctrl, designs)

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedBody != "" {
				if got := strings.TrimSpace(rec.Body.String()); got != tt.expectedBody {
					t.Errorf("expected body %s, got %s", tt.expectedBody, got)
				}
			}
			if got := ctrl.refreshes.Load(); got != tt.refreshes {
				t.Errorf("expected %d refreshes, got %d", tt.refreshes, got)
			}
		})
	}
}

func TestServer_SetDesignPersists(t *testing.T) {
	designs := &fakeDesigns{design: domain.DesignAlbumAndArtistArt}
	s := NewServer(zap.NewNop(), "", &fakeController{}, designs)

	req := httptest.NewRequest(http.MethodPut, "/v1/design", strings.NewReader(`{"design":"Disabled"}`))
	s.Handler().ServeHTTP(httptest.NewRecorder(), req)

	if designs.design != domain.DesignDisabled {
		t.Errorf("expected Disabled persisted, got %v", designs.design)
	}
}

func TestServer_StartStop(t *testing.T) {
	ctx := context.Background()

	t.Run("Disabled", func(t *testing.T) {
		s := NewServer(zap.NewNop(), "", &fakeController{}, &fakeDesigns{})
		if err := s.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}
		if err := s.Stop(ctx); err != nil {
			t.Fatalf("Stop: %v", err)
		}
	})

	t.Run("Listening", func(t *testing.T) {
		ln := httptest.NewUnstartedServer(nil)
		addr := ln.Listener.Addr().String()
		ln.Listener.Close()

		s := NewServer(zap.NewNop(), addr, &fakeController{pinned: true}, &fakeDesigns{})
		if err := s.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}
		defer s.Stop(ctx)

		resp, err := http.Get("http://" + addr + "/v1/pin")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		defer resp.Body.Close()

		var body struct {
			Pinned bool `json:"pinned"`
		}
		data, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(data, &body); err != nil || !body.Pinned {
			t.Errorf("unexpected response %s (%v)", data, err)
		}
	})

	t.Run("Address In Use", func(t *testing.T) {
		busy := httptest.NewServer(http.NotFoundHandler())
		defer busy.Close()

		s := NewServer(zap.NewNop(), busy.Listener.Addr().String(), &fakeController{}, &fakeDesigns{})
		if err := s.Start(ctx); err == nil {
			s.Stop(ctx)
			t.Fatal("expected listen error")
		}
	})
}
