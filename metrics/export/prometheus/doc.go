// Package prometheus renders authkit engine metrics in the Prometheus text
// exposition format.
//
// Counters are named authkit_*_total; the login latency histogram is
// authkit_login_latency_seconds. Nothing is registered globally: callers
// mount [Exporter.Handler] on their own mux.
package prometheus
