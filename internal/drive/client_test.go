package drive

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUploadSendsMultipartMetadataAndContent(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotName string
	var gotContent []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/files", r.URL.Path)
		require.Equal(t, "multipart", r.URL.Query().Get("uploadType"))
		gotAuth = r.Header.Get("Authorization")

		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		require.Equal(t, "multipart/related", mediaType)

		reader := multipart.NewReader(r.Body, params["boundary"])

		metaPart, err := reader.NextPart()
		require.NoError(t, err)
		var metadata struct {
			Name string `json:"name"`
		}
		require.NoError(t, json.NewDecoder(metaPart).Decode(&metadata))
		gotName = metadata.Name

		filePart, err := reader.NextPart()
		require.NoError(t, err)
		gotContent, err = io.ReadAll(filePart)
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"remote-123"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, srv.Client())
	id, err := client.Upload(context.Background(), "expense_backup_2026-08-30.db", []byte("snapshot-bytes"), "tok-1")
	require.NoError(t, err)
	require.Equal(t, "remote-123", id)
	require.Equal(t, "Bearer tok-1", gotAuth)
	require.Equal(t, "expense_backup_2026-08-30.db", gotName)
	require.Equal(t, []byte("snapshot-bytes"), gotContent)
}

func TestListFiltersByNamePrefix(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/files", r.URL.Path)
		q := r.URL.Query().Get("q")
		require.Contains(t, q, "name contains 'expense_backup_'")
		require.Contains(t, q, "trashed = false")
		require.Equal(t, "files(id,name,modifiedTime,size)", r.URL.Query().Get("fields"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"files":[{"id":"a","name":"expense_backup_2026-08-29.db","modifiedTime":"2026-08-29T10:00:00Z","size":"4096"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, srv.Client())
	files, err := client.List(context.Background(), "tok-1", "expense_backup_")
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "expense_backup_2026-08-29.db", files[0].Name)
	require.Equal(t, "a", files[0].ID)
}

func TestDownloadReturnsRawBytes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/files/remote-123", r.URL.Path)
		require.Equal(t, "media", r.URL.Query().Get("alt"))
		_, _ = w.Write([]byte("snapshot-bytes"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, srv.Client())
	data, err := client.Download(context.Background(), "remote-123", "tok-1")
	require.NoError(t, err)
	require.Equal(t, []byte("snapshot-bytes"), data)
}

func TestUnauthorizedStatusMapsToSentinel(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, srv.Client())

	_, err := client.List(context.Background(), "expired", "expense_backup_")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = client.Download(context.Background(), "remote-123", "expired")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = client.Upload(context.Background(), "x.db", []byte("data"), "expired")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestServerErrorIncludesStatusAndBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, srv.Client())
	_, err := client.List(context.Background(), "tok", "expense_backup_")
	require.Error(t, err)
	require.False(t, strings.Contains(err.Error(), "unauthorized"))
	require.Contains(t, err.Error(), "503")
	require.Contains(t, err.Error(), "backend unavailable")
}
