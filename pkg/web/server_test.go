package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/teslashibe/go-focuspet/pkg/camera"
	"github.com/teslashibe/go-focuspet/pkg/companion"
	"github.com/teslashibe/go-focuspet/pkg/mood"
	"github.com/teslashibe/go-focuspet/pkg/pipeline"
	"github.com/teslashibe/go-focuspet/pkg/stats"
)

func newTestServer(t *testing.T) (*Server, *companion.Companion) {
	t.Helper()
	cfg := companion.DefaultConfig()
	cfg.Pipeline.Camera = camera.Config{Width: 64, Height: 48, TargetFPS: 60}

	pet := companion.New(cfg, &pipeline.MockOpener{}, companion.WithStore(stats.NewMemoryStore()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		pet.Close(ctx)
	})
	return NewServer(DefaultConfig(), pet, nil, nil), pet
}

func do(t *testing.T, s *Server, method, path string, out any) int {
	t.Helper()
	resp, err := s.App().Test(httptest.NewRequest(method, path, nil), 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, body, err)
		}
	}
	return resp.StatusCode
}

func TestServer_PetAndFocus(t *testing.T) {
	s, _ := newTestServer(t)

	var pet companion.PetState
	if code := do(t, s, http.MethodGet, "/api/pet", &pet); code != http.StatusOK {
		t.Fatalf("status: got %d", code)
	}
	if pet.Mood != mood.Idle || pet.IsVisionActive {
		t.Errorf("pet: got %+v", pet)
	}

	var raw map[string]any
	if code := do(t, s, http.MethodGet, "/api/focus", &raw); code != http.StatusOK {
		t.Fatalf("focus status: got %d", code)
	}
	if _, ok := raw["face_present"]; !ok {
		t.Errorf("focus body missing face_present: %v", raw)
	}
}

func TestServer_Gesture(t *testing.T) {
	s, pet := newTestServer(t)

	tests := []struct {
		name     string
		gesture  string
		wantCode int
	}{
		{"wave", "wave", http.StatusOK},
		{"thumbs up alias", "thumbs_up", http.StatusOK},
		{"unknown", "salute", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]string
			code := do(t, s, http.MethodPost, "/api/gesture/"+tt.gesture, &body)
			if code != tt.wantCode {
				t.Fatalf("status: got %d, want %d (%v)", code, tt.wantCode, body)
			}
			if code == http.StatusOK && body["mood"] != "interact" {
				t.Errorf("mood: got %q", body["mood"])
			}
			if code != http.StatusOK && body["error"] == "" {
				t.Error("missing error message")
			}
		})
	}

	if pet.FocusStats().Mood != mood.Interact {
		t.Errorf("companion mood: got %v", pet.FocusStats().Mood)
	}
}

func TestServer_VisionLifecycle(t *testing.T) {
	s, pet := newTestServer(t)

	if code := do(t, s, http.MethodPost, "/api/vision/stop", nil); code != http.StatusConflict {
		t.Errorf("stop while stopped: got %d, want 409", code)
	}

	var ps companion.PetState
	if code := do(t, s, http.MethodPost, "/api/vision/start", &ps); code != http.StatusOK {
		t.Fatalf("start: got %d", code)
	}
	if !ps.IsVisionActive {
		t.Error("start response: vision not active")
	}
	if code := do(t, s, http.MethodPost, "/api/vision/start", nil); code != http.StatusConflict {
		t.Errorf("second start: got %d, want 409", code)
	}

	if code := do(t, s, http.MethodPost, "/api/vision/stop", &ps); code != http.StatusOK {
		t.Fatalf("stop: got %d", code)
	}
	if ps.IsVisionActive || pet.IsVisionActive() {
		t.Error("vision still active after stop")
	}
}

func TestServer_Stats(t *testing.T) {
	s, _ := newTestServer(t)

	var resp StatsResponse
	if code := do(t, s, http.MethodGet, "/api/stats", &resp); code != http.StatusOK {
		t.Fatalf("stats: got %d", code)
	}
	if resp.Today.Date != stats.Today(time.Now()) {
		t.Errorf("today: got %q", resp.Today.Date)
	}

	var days []stats.DailyStats
	if code := do(t, s, http.MethodGet, "/api/stats/daily?days=3", &days); code != http.StatusOK {
		t.Fatalf("daily: got %d", code)
	}
	if len(days) != 0 {
		t.Errorf("daily: got %d entries", len(days))
	}

	for _, q := range []string{"0", "400", "-1"} {
		if code := do(t, s, http.MethodGet, "/api/stats/daily?days="+q, nil); code != http.StatusBadRequest {
			t.Errorf("days=%s: got %d, want 400", q, code)
		}
	}

	var reset mood.Stats
	if code := do(t, s, http.MethodPost, "/api/stats/reset", &reset); code != http.StatusOK {
		t.Fatalf("reset: got %d", code)
	}
	if reset.TotalFocusMs != 0 {
		t.Errorf("reset: got %dms", reset.TotalFocusMs)
	}
}

func TestServer_WebsocketRequiresUpgrade(t *testing.T) {
	s, _ := newTestServer(t)
	for _, path := range []string{"/ws/focus", "/ws/mood", "/ws/preview"} {
		if code := do(t, s, http.MethodGet, path, nil); code != http.StatusUpgradeRequired {
			t.Errorf("%s: got %d, want 426", path, code)
		}
	}
}

func TestServer_Health(t *testing.T) {
	s, _ := newTestServer(t)
	var body map[string]any
	if code := do(t, s, http.MethodGet, "/healthz", &body); code != http.StatusOK {
		t.Fatalf("healthz: got %d", code)
	}
	if body["status"] != "ok" {
		t.Errorf("body: %v", body)
	}
}
