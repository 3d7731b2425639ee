package marker

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchURL(t *testing.T) {

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fan-bytes"))
	}))

	defer s.Close()

	opts := &FetchOptions{
		URL:     s.URL,
		Timeout: time.Second,
	}

	body, err := Fetch(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []byte("fan-bytes"), body)
}

func TestFetchURLRetries(t *testing.T) {

	var calls int32

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "try again", http.StatusInternalServerError)
			return
		}

		w.Write([]byte("fan-bytes"))
	}))

	defer s.Close()

	opts := &FetchOptions{
		URL:      s.URL,
		Timeout:  time.Second,
		Attempts: 3,
	}

	body, err := Fetch(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []byte("fan-bytes"), body)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchURLExhausted(t *testing.T) {

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusNotFound)
	}))

	defer s.Close()

	opts := &FetchOptions{
		URL:      s.URL,
		Timeout:  time.Second,
		Attempts: 2,
	}

	_, err := Fetch(context.Background(), opts)
	require.Error(t, err)
}

func TestFetchReader(t *testing.T) {

	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Fan.png"), []byte("fan-bytes"), 0644))

	opts := &FetchOptions{
		ReaderURI: "fs://" + dir,
		Path:      "Fan.png",
	}

	body, err := Fetch(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []byte("fan-bytes"), body)
}

func TestFetchMissingSource(t *testing.T) {

	_, err := Fetch(context.Background(), &FetchOptions{})
	require.Error(t, err)
}

func TestFetchPreRotate(t *testing.T) {

	im := image.NewNRGBA(image.Rect(0, 0, 10, 20))

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, im))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Fan.png"), buf.Bytes(), 0644))

	opts := &FetchOptions{
		ReaderURI: "fs://" + dir,
		Path:      "Fan.png",
		PreRotate: 90.0,
	}

	body, err := Fetch(context.Background(), opts)
	require.NoError(t, err)

	im2, err := png.Decode(bytes.NewReader(body))
	require.NoError(t, err)

	assert.Equal(t, 20, im2.Bounds().Dx())
	assert.Equal(t, 10, im2.Bounds().Dy())
}
