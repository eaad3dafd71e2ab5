package request

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const claimBody = `{"issuer":"did:attesto:employer:acme","title":"Backend engineer","career_type":"VC","content":{"years":3}}`

func TestBodyLimit(t *testing.T) {
	t.Run("claim body under the limit reaches the handler intact", func(t *testing.T) {
		var got string
		handler := BodyLimit(1024, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			got = string(data)
			w.WriteHeader(http.StatusCreated)
		}))

		req := httptest.NewRequest(http.MethodPost, "/claims", strings.NewReader(claimBody))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, claimBody, got)
	})

	t.Run("body of exactly the limit is accepted", func(t *testing.T) {
		handler := BodyLimit(int64(len(claimBody)), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			w.WriteHeader(http.StatusCreated)
		}))

		req := httptest.NewRequest(http.MethodPost, "/claims", strings.NewReader(claimBody))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("declared length over the limit is refused before the handler", func(t *testing.T) {
		called := false
		handler := BodyLimit(32, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		req := httptest.NewRequest(http.MethodPost, "/claims", strings.NewReader(claimBody))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.False(t, called)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "payload_too_large", body["error"])
	})

	t.Run("unknown length over the limit fails on read", func(t *testing.T) {
		var readErr error
		handler := BodyLimit(32, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, readErr = io.ReadAll(r.Body)
		}))

		req := httptest.NewRequest(http.MethodPost, "/claims", io.NopCloser(strings.NewReader(claimBody)))
		req.ContentLength = -1
		req.TransferEncoding = []string{"chunked"}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		var tooLarge *http.MaxBytesError
		require.True(t, errors.As(readErr, &tooLarge), "got %v", readErr)
		assert.Equal(t, int64(32), tooLarge.Limit)
	})

	t.Run("GET without a body passes through", func(t *testing.T) {
		handler := BodyLimit(32, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/claims", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
