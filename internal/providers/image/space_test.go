package image

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"server/internal/domain"
)

// spaceHarness wires a fake hub, a fake gradio host and a fake asset server.
type spaceHarness struct {
	hub    *httptest.Server
	host   *httptest.Server
	assets *httptest.Server
}

func newSpaceHarness(t *testing.T, streamBody func(assetURL string) string) *spaceHarness {
	t.Helper()
	h := &spaceHarness{}

	h.assets = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/webp")
		_, _ = w.Write([]byte("webp-bytes"))
	}))

	mux := http.NewServeMux()
	mux.HandleFunc("/gradio_api/call/infer", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Data []any `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode call payload: %v", err)
		}
		if len(payload.Data) != 6 {
			t.Errorf("call payload has %d entries, want 6", len(payload.Data))
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"event_id": "evt-1"})
	})
	mux.HandleFunc("/gradio_api/call/infer/evt-1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(streamBody(h.assets.URL + "/file.webp")))
	})
	h.host = httptest.NewServer(mux)

	h.hub = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/spaces/owner/space/host" {
			t.Errorf("hub path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"host": h.host.URL})
	}))

	t.Cleanup(func() {
		h.hub.Close()
		h.host.Close()
		h.assets.Close()
	})
	return h
}

func newSpaceTestClient(hubURL string) *SpaceClient {
	return NewSpaceClient(SpaceOptions{
		APIToken:   "token",
		Space:      "owner/space",
		HubBaseURL: hubURL,
		Timeout:    2 * time.Second,
	})
}

func TestSpaceGenerateFollowsEventStream(t *testing.T) {
	h := newSpaceHarness(t, func(assetURL string) string {
		return strings.Join([]string{
			"event: generating",
			`data: null`,
			"event: complete",
			fmt.Sprintf(`data: [{"url": %q, "meta": {"_type": "gradio.FileData"}}]`, assetURL),
			"",
		}, "\n")
	})

	client := newSpaceTestClient(h.hub.URL)
	result, err := client.Generate(context.Background(), GenerateParams{
		Prompt:     "a cat",
		InputImage: []byte{0x52, 0x49},
	})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if string(result.Image) != "webp-bytes" {
		t.Fatalf("Generate() image = %q", result.Image)
	}
	if result.ContentType != "image/webp" {
		t.Fatalf("Generate() content type = %q", result.ContentType)
	}
}

func TestSpaceErrorEventClassified(t *testing.T) {
	h := newSpaceHarness(t, func(string) string {
		return "event: error\ndata: GPU queue is full, try again later\n"
	})

	client := newSpaceTestClient(h.hub.URL)
	_, err := client.Generate(context.Background(), GenerateParams{Prompt: "x"})
	if !errors.Is(err, domain.ErrProviderBusy) {
		t.Fatalf("Generate() error = %v, want ErrProviderBusy", err)
	}
}

func TestSpaceStreamWithoutCompletionFails(t *testing.T) {
	h := newSpaceHarness(t, func(string) string {
		return "event: generating\ndata: null\n"
	})

	client := newSpaceTestClient(h.hub.URL)
	_, err := client.Generate(context.Background(), GenerateParams{Prompt: "x"})
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("Generate() error = %v, want ErrProviderFailure", err)
	}
}

func TestSpaceHostResolutionDenied(t *testing.T) {
	hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "requires license acceptance", http.StatusForbidden)
	}))
	defer hub.Close()

	client := newSpaceTestClient(hub.URL)
	_, err := client.Generate(context.Background(), GenerateParams{Prompt: "x"})
	if !errors.Is(err, domain.ErrProviderPermissionDenied) {
		t.Fatalf("Generate() error = %v, want ErrProviderPermissionDenied", err)
	}
}

func TestSpaceUnavailableWithoutToken(t *testing.T) {
	client := NewSpaceClient(SpaceOptions{})
	if client.Available() {
		t.Fatal("Available() = true without token")
	}
}

func TestSpaceDefaultClientDoesNotCapStream(t *testing.T) {
	// The event stream stays open for the whole generation, so the transport
	// must not impose its own deadline on top of the configured budget.
	client := NewSpaceClient(SpaceOptions{APIToken: "token"})
	if client.httpClient.Timeout != 0 {
		t.Fatalf("default http client timeout = %v, want none", client.httpClient.Timeout)
	}
}

func TestSpaceSlowStreamCompletesWithinBudget(t *testing.T) {
	assets := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer assets.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/gradio_api/call/infer", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"event_id": "evt-1"})
	})
	mux.HandleFunc("/gradio_api/call/infer/evt-1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Error("response writer is not a flusher")
			return
		}
		// Heartbeats trickle in before the result, as on a queued space.
		for i := 0; i < 4; i++ {
			_, _ = fmt.Fprint(w, "event: heartbeat\ndata: null\n")
			flusher.Flush()
			time.Sleep(100 * time.Millisecond)
		}
		_, _ = fmt.Fprintf(w, "event: complete\ndata: [{\"url\": %q}]\n", assets.URL+"/file.png")
		flusher.Flush()
	})
	host := httptest.NewServer(mux)
	defer host.Close()

	hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"host": host.URL})
	}))
	defer hub.Close()

	client := NewSpaceClient(SpaceOptions{
		APIToken:   "token",
		Space:      "owner/space",
		HubBaseURL: hub.URL,
		Timeout:    5 * time.Second,
	})
	result, err := client.Generate(context.Background(), GenerateParams{
		Prompt:     "a cat",
		InputImage: []byte{0x89, 0x50},
	})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if string(result.Image) != "png-bytes" {
		t.Fatalf("Generate() image = %q", result.Image)
	}
}
