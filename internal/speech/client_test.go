package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTranscribe(t *testing.T) {
	req := require.New(t)

	audioPath := filepath.Join(t.TempDir(), "in.m4a")
	req.NoError(os.WriteFile(audioPath, []byte("fake audio"), 0644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/audio/transcriptions", r.URL.Path)
		req.Equal("Bearer test-key", r.Header.Get("Authorization"))

		req.NoError(r.ParseMultipartForm(1 << 20))
		req.Equal("whisper-1", r.FormValue("model"))
		file, header, err := r.FormFile("file")
		req.NoError(err)
		defer file.Close()
		req.Equal("in.m4a", header.Filename)

		json.NewEncoder(w).Encode(map[string]string{"text": "hello world"})
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, 5*time.Second)
	text, err := c.Transcribe(context.Background(), audioPath)
	req.NoError(err)
	req.Equal("hello world", text)
}

func TestSynthesize(t *testing.T) {
	req := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/audio/speech", r.URL.Path)
		req.Equal("Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]string
		req.NoError(json.NewDecoder(r.Body).Decode(&body))
		req.Equal("tts-1", body["model"])
		req.Equal("alloy", body["voice"])
		req.Equal("hello", body["input"])
		req.Equal("mp3", body["response_format"])

		w.Write([]byte("mp3 bytes"))
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, 5*time.Second)
	audio, err := c.Synthesize(context.Background(), "hello")
	req.NoError(err)
	req.Equal([]byte("mp3 bytes"), audio)
}

func TestAPIErrorIncludesStatusAndBody(t *testing.T) {
	req := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, 5*time.Second)
	_, err := c.Synthesize(context.Background(), "hello")
	req.Error(err)
	req.Contains(err.Error(), "429")
	req.Contains(err.Error(), "rate limited")
}

func TestTranscribeMissingFile(t *testing.T) {
	c := NewClient("test-key", "http://localhost:1", time.Second)
	_, err := c.Transcribe(context.Background(), "/does/not/exist.m4a")
	require.Error(t, err)
}
