package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatasetURL(t *testing.T) {
	assert.Equal(t,
		"https://huggingface.co/datasets/nateraw/background-remover-files/resolve/main/modnet.onnx",
		DatasetURL("nateraw/background-remover-files", "modnet.onnx"))
}

func TestFetcher_DownloadsOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/files/modnet.onnx", r.URL.Path)
		_, _ = w.Write([]byte("onnx-bytes"))
	}))
	defer srv.Close()

	logger, _ := test.NewNullLogger()
	f := NewFetcher(filepath.Join(t.TempDir(), "cache"), logger)

	p, err := f.Fetch(context.Background(), srv.URL+"/files/modnet.onnx", "")
	require.NoError(t, err)
	assert.Equal(t, "modnet.onnx", filepath.Base(p))
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "onnx-bytes", string(data))

	p2, err := f.Fetch(context.Background(), srv.URL+"/files/modnet.onnx", "")
	require.NoError(t, err)
	assert.Equal(t, p, p2)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetcher_ExplicitName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("jpeg"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), nil)
	p, err := f.Fetch(context.Background(), srv.URL+"/twitter_profile_pic.jpeg", "twitter_profile_pic.jpg")
	require.NoError(t, err)
	assert.Equal(t, "twitter_profile_pic.jpg", filepath.Base(p))
}

func TestFetcher_RefetchesEmptyCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "obama.jpg"), nil, 0o644))

	f := NewFetcher(dir, nil)
	p, err := f.Fetch(context.Background(), srv.URL+"/obama.jpg", "")
	require.NoError(t, err)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}

func TestFetcher_Failures(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantErrMsg string
	}{
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			wantErrMsg: "status code 404",
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
			wantErrMsg: "empty body",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			dir := t.TempDir()
			f := NewFetcher(dir, nil)
			_, err := f.Fetch(context.Background(), srv.URL+"/modnet.onnx", "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErrMsg)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries, "partial downloads must not stay behind")
		})
	}
}

func TestFetcher_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), nil).WithClient(&http.Client{Timeout: 50 * time.Millisecond})
	_, err := f.Fetch(context.Background(), srv.URL+"/modnet.onnx", "")
	assert.Error(t, err)
}

func TestFetcher_RejectsPathNames(t *testing.T) {
	f := NewFetcher(t.TempDir(), nil)
	_, err := f.Fetch(context.Background(), "http://127.0.0.1/x", "../escape.onnx")
	assert.Error(t, err)
}
