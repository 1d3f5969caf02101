// Package testutil provides helpers for exercising HTTP handlers in tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tolet/service/internal/storage"
	"github.com/tolet/service/internal/upload"
)

// File is one multipart file part.
type File struct {
	Field    string
	Filename string
	Body     []byte
}

// MultipartRequest builds a multipart/form-data request.
func MultipartRequest(t *testing.T, method, target string, fields map[string]string, files ...File) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		w, err := mw.CreateFormFile(f.Field, f.Filename)
		require.NoError(t, err)
		_, err = w.Write(f.Body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

// JSONRequest builds a request with a JSON body.
func JSONRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	r := httptest.NewRequest(method, target, bytes.NewReader(payload))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// Serve runs r through h and decodes the JSON response into out when non-nil.
func Serve(t *testing.T, h http.Handler, r *http.Request, out any) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), "body: %s", rec.Body.String())
	}
	return rec
}

// LocalUploads returns a receiver and local storage sharing one temp directory.
func LocalUploads(t *testing.T) (*upload.Receiver, *storage.LocalStorage) {
	t.Helper()
	dir := t.TempDir()
	rc, err := upload.NewReceiver(dir)
	require.NoError(t, err)
	ls, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	return rc, ls
}

// UploadedFile returns the on-disk path for a local "uploads/..." reference.
func UploadedFile(ls *storage.LocalStorage, ref string) string {
	return filepath.Join(ls.Dir(), filepath.Base(ref))
}

// DirEntries lists file names in dir.
func DirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
