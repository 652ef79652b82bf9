package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	cfg "github.com/example/jwtauth/internal/config"
	"github.com/example/jwtauth/internal/logging"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-0123456789abcdef0123456789abcdef"

func testConfig() *cfg.Config {
	return &cfg.Config{
		Version:        "1.0.0",
		DBAdapter:      "memory",
		JwtSecret:      testSecret,
		JwtTTL:         time.Hour,
		BcryptCost:     bcrypt.MinCost,
		AllowedOrigins: []string{"*"},
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	return newTestAppWith(t, testConfig(), NewMemoryDB())
}

func newTestAppWith(t *testing.T, c *cfg.Config, db UserStore) *App {
	t.Helper()
	app, err := NewApp(c, db, logging.Discard())
	require.NoError(t, err)
	return app
}

type apiResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any, header http.Header) (*httptest.ResponseRecorder, apiResult) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var res apiResult
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	}
	return rec, res
}

func doRawRequest(t *testing.T, h http.Handler, method, path string, body io.Reader) (*httptest.ResponseRecorder, apiResult) {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var res apiResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	return rec, res
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}
