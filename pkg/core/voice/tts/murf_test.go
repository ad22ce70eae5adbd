package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-go/vai-council/pkg/core"
	"github.com/vango-go/vai-council/pkg/core/credentials"
)

type murfFrames struct {
	config murfConfigFrame
	text   murfTextFrame
	query  string
}

// newMurfServer starts a fake Murf endpoint. After reading the config and
// text frames it hands the connection to respond.
func newMurfServer(t *testing.T, respond func(conn *websocket.Conn)) (*httptest.Server, <-chan murfFrames) {
	t.Helper()
	frames := make(chan murfFrames, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var got murfFrames
		got.query = r.URL.RawQuery
		if err := conn.ReadJSON(&got.config); err != nil {
			return
		}
		if err := conn.ReadJSON(&got.text); err != nil {
			return
		}
		frames <- got
		respond(conn)
	}))
	t.Cleanup(srv.Close)
	return srv, frames
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMurf(srv *httptest.Server) *MurfProvider {
	return NewMurf(credentials.Static{Synthesis: "murf-key"}, WithURL(wsURL(srv)), WithLogger(quietLogger()))
}

func TestMurf_AssemblesChunksUntilFinal(t *testing.T) {
	srv, frames := newMurfServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]any{"audio": base64.StdEncoding.EncodeToString([]byte{0x01, 0x02})})
		_ = conn.WriteJSON(map[string]any{"audio": base64.StdEncoding.EncodeToString([]byte{0x03})})
		_ = conn.WriteJSON(map[string]any{"final": true})
	})

	syn, err := testMurf(srv).Synthesize(context.Background(), "Hello council", "en-US-natalie")
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	if string(syn.Audio) != string([]byte{0x01, 0x02, 0x03}) {
		t.Fatalf("audio = %v, want [1 2 3]", syn.Audio)
	}
	if syn.Partial || syn.Chunks != 2 || syn.Format != "wav" || syn.SampleRate != 44100 {
		t.Fatalf("synthesis = %#v", syn)
	}

	got := <-frames
	if got.config.VoiceConfig.VoiceID != "en-US-natalie" || got.config.VoiceConfig.Style != "Conversational" {
		t.Fatalf("voice config = %#v", got.config.VoiceConfig)
	}
	if got.config.VoiceConfig.Variation != 1 {
		t.Fatalf("variation = %d, want 1", got.config.VoiceConfig.Variation)
	}
	if !strings.HasPrefix(got.config.ContextID, "council_") {
		t.Fatalf("context_id = %q, want council_ prefix", got.config.ContextID)
	}
	if got.text.ContextID != got.config.ContextID || !got.text.End || got.text.Text != "Hello council" {
		t.Fatalf("text frame = %#v", got.text)
	}
	for _, want := range []string{"api-key=murf-key", "sample_rate=44100", "channel_type=MONO", "format=WAV"} {
		if !strings.Contains(got.query, want) {
			t.Fatalf("query %q missing %q", got.query, want)
		}
	}
}

func TestMurf_DecodesUnpaddedBase64(t *testing.T) {
	srv, _ := newMurfServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]any{"audio": base64.RawStdEncoding.EncodeToString([]byte{0x01, 0x02, 0x03, 0x04})})
		_ = conn.WriteJSON(map[string]any{"final": true})
	})

	syn, err := testMurf(srv).Synthesize(context.Background(), "hi", "v")
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	if len(syn.Audio) != 4 {
		t.Fatalf("len(audio) = %d, want 4", len(syn.Audio))
	}
}

func TestMurf_ReturnsPartialAudioOnEarlyClose(t *testing.T) {
	srv, _ := newMurfServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]any{"audio": base64.StdEncoding.EncodeToString([]byte{0x09, 0x08})})
		msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "upstream reset")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	})

	syn, err := testMurf(srv).Synthesize(context.Background(), "hi", "v")
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	if !syn.Partial || len(syn.Audio) != 2 {
		t.Fatalf("synthesis = %#v, want partial with 2 bytes", syn)
	}
}

func TestMurf_ZeroFramesCloseIsFailure(t *testing.T) {
	srv, _ := newMurfServer(t, func(conn *websocket.Conn) {
		msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "no capacity")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	})

	_, err := testMurf(srv).Synthesize(context.Background(), "hi", "v")
	if !errors.Is(err, ErrNoAudio) {
		t.Fatalf("Synthesize error = %v, want ErrNoAudio", err)
	}
}

func TestMurf_ErrorFrame(t *testing.T) {
	srv, _ := newMurfServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]any{"error": "invalid voice"})
	})

	_, err := testMurf(srv).Synthesize(context.Background(), "hi", "nope")
	if err == nil || !strings.Contains(err.Error(), "invalid voice") {
		t.Fatalf("Synthesize error = %v, want murf error", err)
	}
}

func TestMurf_ContextTimeoutUnblocksRead(t *testing.T) {
	srv, _ := newMurfServer(t, func(conn *websocket.Conn) {
		// Never answer.
		_, _, _ = conn.ReadMessage()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := testMurf(srv).Synthesize(ctx, "hi", "v")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Synthesize error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("Synthesize took %v after deadline", time.Since(start))
	}
}

func TestMurf_MissingKeyIsConfigurationError(t *testing.T) {
	p := NewMurf(credentials.Static{}, WithURL("ws://127.0.0.1:1"))
	_, err := p.Synthesize(context.Background(), "hi", "v")
	if !core.IsType(err, core.ErrConfiguration) {
		t.Fatalf("Synthesize error = %v, want configuration error", err)
	}
	if p.Name() != "murf" {
		t.Fatalf("name = %q, want murf", p.Name())
	}
}

func TestMurf_NilCredentialsIsConfigurationError(t *testing.T) {
	_, err := NewMurf(nil, WithURL("ws://127.0.0.1:1")).Synthesize(context.Background(), "hi", "v")
	if !core.IsType(err, core.ErrConfiguration) {
		t.Fatalf("Synthesize error = %v, want configuration error", err)
	}
}

func TestMurf_EmptyTextIsValidationError(t *testing.T) {
	p := NewMurf(credentials.Static{Synthesis: "murf-key"}, WithURL("ws://127.0.0.1:1"))
	_, err := p.Synthesize(context.Background(), "  ", "v")
	if !core.IsType(err, core.ErrValidation) {
		t.Fatalf("Synthesize error = %v, want validation error", err)
	}
}

func TestGenerateContextID_Unique(t *testing.T) {
	a, b := generateContextID(), generateContextID()
	if a == b {
		t.Fatalf("context ids should differ: %q", a)
	}
	parts := strings.Split(a, "_")
	if len(parts) != 3 || parts[0] != "council" || len(parts[2]) != 9 {
		t.Fatalf("context id = %q, want council_<ms>_<9 chars>", a)
	}
}

func TestMurfFrames_WireShape(t *testing.T) {
	data, err := json.Marshal(murfTextFrame{Text: "x", ContextID: "c", End: true})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"text":"x","context_id":"c","end":true}` {
		t.Fatalf("text frame = %s", data)
	}
}
