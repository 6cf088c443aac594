package api

import (
	"net"
	"net/http"
)

// requireLoopback refuses any request whose RemoteAddr does not resolve
// to a loopback IP. Administrative operations only accept connections
// from the local host, over either IPv4 or IPv6.
//
// Go's net/http strips the listening address, not the peer's, so this
// relies on r.RemoteAddr as set by the transport; it is not spoofable
// by request headers the way X-Forwarded-For would be.
func requireLoopback(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip := net.ParseIP(host)
		if ip == nil || !ip.IsLoopback() {
			writeError(w, http.StatusForbidden, "administrative endpoint requires a loopback connection")
			return
		}
		next.ServeHTTP(w, r)
	})
}
