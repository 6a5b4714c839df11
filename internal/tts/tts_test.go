package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RickEth137/ClawStream/internal/config"
)

func TestEstimateDuration(t *testing.T) {
	assert.Equal(t, time.Duration(0), EstimateDuration(""))
	assert.Equal(t, time.Second, EstimateDuration("hi"), "single word is floored to one second")
	assert.Equal(t, 2*time.Second, EstimateDuration("one two three four five"))
}

func TestOpenAIClientSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/speech", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte("fake-audio"))
	}))
	defer srv.Close()

	c := NewOpenAIClient(config.TTSConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "tts-1",
		Voice:   "alloy",
		Format:  "mp3",
	})

	clip, err := c.Synthesize(context.Background(), "hello there world")
	require.NoError(t, err)
	assert.Equal(t, []byte("fake-audio"), clip.Audio)
	assert.Equal(t, "mp3", clip.Format)
	assert.Greater(t, clip.Duration, time.Duration(0))
}

func TestOpenAIClientBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewOpenAIClient(config.TTSConfig{BaseURL: srv.URL, Format: "mp3"})

	_, err := c.Synthesize(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrSynthesis)
}

func TestOpenAIClientUnconfigured(t *testing.T) {
	c := NewOpenAIClient(config.TTSConfig{})
	_, err := c.Synthesize(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNoop(t *testing.T) {
	_, err := Noop{}.Synthesize(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrUnavailable)
}
