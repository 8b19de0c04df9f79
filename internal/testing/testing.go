// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) *LimitedWriter {
	return &LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// SpotifyServer fakes the token endpoint, the currently playing endpoint and an image CDN.
//
// Refreshes always succeed with access token "A2". The player answers only for "Bearer A2" and reports
// one playing track whose album has a single 300px cover served from /cover.
type SpotifyServer struct {
	*httptest.Server
	Cover     []byte
	Refreshes atomic.Int32
	Exchanges atomic.Int32
}

// NewSpotifyServer starts a [SpotifyServer] with a solid red PNG cover. It is closed on test cleanup.
func NewSpotifyServer(t *testing.T) *SpotifyServer {
	t.Helper()

	s := &SpotifyServer{Cover: SolidPNG(t, 300, 300, color.RGBA{R: 255, A: 255})}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// TokenURL is the fake token endpoint.
func (s *SpotifyServer) TokenURL() string { return s.URL + "/api/token" }

// APIURL is the fake Web API base URL.
func (s *SpotifyServer) APIURL() string { return s.URL + "/v1" }

func (s *SpotifyServer) serve(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/token":
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("grant_type") == "authorization_code" {
			s.Exchanges.Add(1)
			fmt.Fprint(w, `{"access_token":"A1","refresh_token":"R1","token_type":"Bearer","expires_in":3600}`)
			return
		}
		s.Refreshes.Add(1)
		fmt.Fprint(w, `{"access_token":"A2","token_type":"Bearer","expires_in":3600}`)
	case "/v1/me/player/currently-playing":
		if r.Header.Get("Authorization") != "Bearer A2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"is_playing":  true,
			"progress_ms": 61000,
			"item": map[string]any{
				"name":        "Song",
				"duration_ms": 185000,
				"artists":     []map[string]any{{"name": "X"}, {"name": "Y"}},
				"album": map[string]any{
					"name":   "Album",
					"images": []map[string]any{{"url": s.URL + "/cover", "width": 300, "height": 300}},
				},
			},
		})
	case "/cover":
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(s.Cover)
	default:
		http.NotFound(w, r)
	}
}

// SolidPNG encodes a w by h image filled with c.
func SolidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// FreeAddr returns a loopback address that was free when checked.
func FreeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to find free port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().String()
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
