// Package pprof mounts the runtime profiler on the screen server's mux.
package pprof

import (
	"crypto/subtle"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
)

const DefaultPrefix = "/debug/pprof/"

// Config controls the optional profiler routes.
//
// The routes share the screen server's listener, so set Token whenever that
// listener is reachable from outside the host.
type Config struct {
	Enabled bool
	Prefix  string
	Token   string
}

// Register adds the profiler routes under cfg.Prefix. It is a no-op when disabled.
func Register(mux *http.ServeMux, cfg Config) {
	if !cfg.Enabled {
		return
	}
	prefix := normalizePrefix(cfg.Prefix)
	wrap := func(h http.HandlerFunc) http.HandlerFunc { return withAuth(cfg.Token, h) }

	// Index also serves the named profiles (heap, goroutine, ...).
	mux.HandleFunc("GET "+prefix, wrap(indexAt(prefix)))
	mux.HandleFunc("GET "+prefix+"cmdline", wrap(hpprof.Cmdline))
	mux.HandleFunc("GET "+prefix+"profile", wrap(hpprof.Profile))
	mux.HandleFunc(prefix+"symbol", wrap(hpprof.Symbol))
	mux.HandleFunc("GET "+prefix+"trace", wrap(hpprof.Trace))
}

func normalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return DefaultPrefix
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// indexAt lets hpprof.Index work under a custom prefix; it only understands
// /debug/pprof/.
func indexAt(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if prefix != DefaultPrefix {
			r2 := r.Clone(r.Context())
			r2.URL.Path = DefaultPrefix + strings.TrimPrefix(r.URL.Path, prefix)
			r = r2
		}
		hpprof.Index(w, r)
	}
}

// withAuth accepts either "Authorization: Bearer <token>" or ?token=<token>.
func withAuth(token string, h http.HandlerFunc) http.HandlerFunc {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.URL.Query().Get("token")
		if got == "" {
			if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, "Bearer ") {
				got = strings.TrimSpace(strings.TrimPrefix(ah, "Bearer "))
			}
		}
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(tok)) != 1 {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}
