package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T, handler http.Handler) *Storage {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := NewStorage(context.Background(), StorageConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	return s
}

func TestListPaginatesTransparently(t *testing.T) {
	var queries []string
	mux := http.NewServeMux()
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("q"))

		switch r.URL.Query().Get("pageToken") {
		case "":
			json.NewEncoder(w).Encode(map[string]any{
				"nextPageToken": "page-2",
				"files": []map[string]any{
					{
						"id": "v1", "name": "a.mp4", "mimeType": "video/mp4",
						"createdTime":  "2026-08-01T10:00:00Z",
						"modifiedTime": "2026-08-02T10:00:00Z",
						"size":         "1024",
					},
				},
			})
		case "page-2":
			json.NewEncoder(w).Encode(map[string]any{
				"files": []map[string]any{
					{
						"id": "v2", "name": "b.mp4", "mimeType": "video/mp4",
						"createdTime": "2026-08-03T10:00:00Z",
					},
				},
			})
		default:
			http.Error(w, "unexpected page token", http.StatusBadRequest)
		}
	})

	s := newTestStorage(t, mux)
	files, err := s.List(context.Background(), "folder-123", "video/")
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.Equal(t, "v1", files[0].ID)
	assert.Equal(t, int64(1024), files[0].Size)
	assert.False(t, files[0].ModifiedTime.IsZero())
	assert.Equal(t, "v2", files[1].ID)
	// No modifiedTime on v2: SortTime falls back to createdTime.
	assert.Equal(t, files[1].CreatedTime, files[1].SortTime())

	require.Len(t, queries, 2)
	for _, q := range queries {
		assert.Contains(t, q, "'folder-123' in parents")
		assert.Contains(t, q, "trashed = false")
		assert.Contains(t, q, "mimeType contains 'video/'")
	}
}

func TestDownloadWritesFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/v1", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "media", r.URL.Query().Get("alt"))
		w.Write([]byte("video-bytes"))
	})

	s := newTestStorage(t, mux)
	dest := filepath.Join(t.TempDir(), "a.mp4")
	require.NoError(t, s.Download(context.Background(), "v1", dest))

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte("video-bytes"), content)
}

func TestUploadReturnsNewID(t *testing.T) {
	var uploaded bool
	mux := http.NewServeMux()
	mux.HandleFunc("/upload/drive/v3/files", func(w http.ResponseWriter, r *http.Request) {
		uploaded = true
		fmt.Fprint(w, `{"id": "new-file-id", "name": "out.mp4"}`)
	})

	s := newTestStorage(t, mux)
	local := filepath.Join(t.TempDir(), "out.mp4")
	require.NoError(t, os.WriteFile(local, []byte("artifact"), 0o644))

	id, err := s.Upload(context.Background(), local, "out-folder", "out.mp4")
	require.NoError(t, err)
	assert.Equal(t, "new-file-id", id)
	assert.True(t, uploaded)
}

func TestRenamePatchesName(t *testing.T) {
	var gotName string
	mux := http.NewServeMux()
	mux.HandleFunc("/files/v1", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		var body struct {
			Name string `json:"name"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotName = body.Name
		fmt.Fprintf(w, `{"id": "v1", "name": %q}`, body.Name)
	})

	s := newTestStorage(t, mux)
	require.NoError(t, s.Rename(context.Background(), "v1", "a__PROCESSED.mp4"))
	assert.Equal(t, "a__PROCESSED.mp4", gotName)
}

func TestListPropagatesAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"code": 500}}`, http.StatusInternalServerError)
	})

	s := newTestStorage(t, mux)
	_, err := s.List(context.Background(), "folder-123", "video/")
	assert.Error(t, err)
}
