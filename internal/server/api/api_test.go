package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ayusman/mugshot/internal/actuator"
	"github.com/ayusman/mugshot/internal/region"
	"github.com/ayusman/mugshot/internal/store"
)

type fakeToggle struct {
	enabled bool
	err     error
}

func (f *fakeToggle) Enabled() bool { return f.enabled }

func (f *fakeToggle) SetEnabled(enabled bool) error {
	if f.err != nil {
		return f.err
	}
	f.enabled = enabled
	return nil
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestEnabledHandler(t *testing.T) {
	toggle := &fakeToggle{}
	h := NewEnabledHandler(toggle)

	t.Run("get", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/enabled", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp enabledResponse
		json.NewDecoder(rec.Body).Decode(&resp)
		if resp.Enabled {
			t.Error("expected disabled")
		}
	})

	t.Run("put", func(t *testing.T) {
		rec := do(t, h, http.MethodPut, "/api/enabled", `{"enabled": true}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
		}
		if !toggle.enabled {
			t.Error("toggle should be enabled")
		}
	})

	t.Run("put without field", func(t *testing.T) {
		rec := do(t, h, http.MethodPut, "/api/enabled", `{}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("put while halted", func(t *testing.T) {
		halted := &fakeToggle{err: fmt.Errorf("%w: boom", actuator.ErrActuationHalted)}
		rec := do(t, NewEnabledHandler(halted), http.MethodPut, "/api/enabled", `{"enabled": true}`)
		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("other error", func(t *testing.T) {
		broken := &fakeToggle{err: errors.New("boom")}
		rec := do(t, NewEnabledHandler(broken), http.MethodPut, "/api/enabled", `{"enabled": false}`)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := do(t, h, http.MethodDelete, "/api/enabled", "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
	})
}

func TestMapAreaHandler(t *testing.T) {
	areas := region.NewStore(region.Full())
	h := NewMapAreaHandler(areas)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantArea   region.Area
	}{
		{
			name:       "valid area",
			body:       `{"x1":0.2,"y1":0.2,"x2":0.8,"y2":0.8}`,
			wantStatus: http.StatusOK,
			wantArea:   region.Area{X1: 0.2, Y1: 0.2, X2: 0.8, Y2: 0.8},
		},
		{
			name:       "inverted area keeps previous",
			body:       `{"x1":0.8,"y1":0.2,"x2":0.2,"y2":0.8}`,
			wantStatus: http.StatusBadRequest,
			wantArea:   region.Area{X1: 0.2, Y1: 0.2, X2: 0.8, Y2: 0.8},
		},
		{
			name:       "out of range keeps previous",
			body:       `{"x1":0,"y1":0,"x2":1.5,"y2":1}`,
			wantStatus: http.StatusBadRequest,
			wantArea:   region.Area{X1: 0.2, Y1: 0.2, X2: 0.8, Y2: 0.8},
		},
		{
			name:       "missing field",
			body:       `{"x1":0,"y1":0,"x2":1}`,
			wantStatus: http.StatusBadRequest,
			wantArea:   region.Area{X1: 0.2, Y1: 0.2, X2: 0.8, Y2: 0.8},
		},
		{
			name:       "zero origin is allowed",
			body:       `{"x1":0,"y1":0,"x2":1,"y2":1}`,
			wantStatus: http.StatusOK,
			wantArea:   region.Full(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPut, "/api/map-area", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
			if got := areas.Load(); got != tt.wantArea {
				t.Errorf("area = %+v, want %+v", got, tt.wantArea)
			}
		})
	}

	t.Run("get", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/map-area", "")
		var got region.Area
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got != areas.Load() {
			t.Errorf("GET = %+v, want %+v", got, areas.Load())
		}
	})
}

func TestEventsHandler(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	sess := &store.Session{Detector: "haar"}
	if err := s.Sessions().Create(sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		s.Events().Append(&store.Event{SessionID: sess.ID, Kind: "detect_error", Seq: uint64(i)})
	}

	h := NewEventsHandler(s.Events(), sess.ID)

	t.Run("limit", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/events?limit=2", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp listEventsResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.SessionID != sess.ID || len(resp.Events) != 2 || resp.Events[0].Seq != 4 {
			t.Errorf("response = %+v", resp)
		}
	})

	t.Run("bad limit", func(t *testing.T) {
		for _, q := range []string{"abc", "0", "-3"} {
			rec := do(t, h, http.MethodGet, "/api/events?limit="+q, "")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("limit=%s: status = %d, want 400", q, rec.Code)
			}
		}
	})

	t.Run("empty session lists no events", func(t *testing.T) {
		rec := do(t, NewEventsHandler(s.Events(), "other"), http.MethodGet, "/api/events", "")
		var resp struct {
			Events []json.RawMessage `json:"events"`
		}
		json.NewDecoder(rec.Body).Decode(&resp)
		if resp.Events == nil || len(resp.Events) != 0 {
			t.Errorf("events = %v, want empty list", resp.Events)
		}
	})
}
