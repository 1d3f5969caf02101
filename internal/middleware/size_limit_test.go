package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func readAll(t *testing.T, limit int64, body []byte) error {
	t.Helper()
	var readErr error
	h := SizeLimit(limit)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)))
	return readErr
}

func TestSizeLimit(t *testing.T) {
	body := bytes.Repeat([]byte("x"), 100)

	assert.NoError(t, readAll(t, 100, body))
	assert.NoError(t, readAll(t, 0, body), "zero disables the limit")

	err := readAll(t, 99, body)
	var mbe *http.MaxBytesError
	assert.True(t, errors.As(err, &mbe))
}
