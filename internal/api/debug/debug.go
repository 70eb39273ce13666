// Package debug exposes the gateway's diagnostics endpoints: pprof
// profiles, expvar counters and a live statsviz view. The mux is served on
// its own port so profiling traffic never shares a listener with the
// upload API.
package debug

import (
	"expvar"
	"net/http"
	"net/http/pprof"

	"github.com/arl/statsviz"
)

// Mux builds the diagnostics mux. A fresh mux is used instead of the
// DefaultServeMux so a dependency can never inject a handler into the
// service unnoticed.
func Mux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/vars", expvar.Handler())

	// Registration only fails on a route collision, which the fresh mux
	// rules out.
	_ = statsviz.Register(mux)

	return mux
}
