package pprof

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func get(mux *http.ServeMux, path string, header ...string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if len(header) == 2 {
		req.Header.Set(header[0], header[1])
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec.Code
}

func TestRegisterDisabled(t *testing.T) {
	mux := http.NewServeMux()
	Register(mux, Config{})
	assert.Equal(t, http.StatusNotFound, get(mux, "/debug/pprof/"))
}

func TestRegisterCustomPrefix(t *testing.T) {
	mux := http.NewServeMux()
	Register(mux, Config{Enabled: true, Prefix: "ops/pprof"})

	assert.Equal(t, http.StatusOK, get(mux, "/ops/pprof/"))
	assert.Equal(t, http.StatusOK, get(mux, "/ops/pprof/goroutine?debug=1"))
	assert.Equal(t, http.StatusOK, get(mux, "/ops/pprof/cmdline"))
}

func TestRegisterToken(t *testing.T) {
	mux := http.NewServeMux()
	Register(mux, Config{Enabled: true, Token: "s3cret"})

	assert.Equal(t, http.StatusUnauthorized, get(mux, "/debug/pprof/"))
	assert.Equal(t, http.StatusUnauthorized, get(mux, "/debug/pprof/?token=nope"))
	assert.Equal(t, http.StatusOK, get(mux, "/debug/pprof/?token=s3cret"))
	assert.Equal(t, http.StatusOK, get(mux, "/debug/pprof/", "Authorization", "Bearer s3cret"))
}
