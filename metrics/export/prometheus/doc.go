// Package prometheus exposes skyAuth counters through a client_golang
// Collector. Values are read from an engine snapshot at scrape time; nothing
// is registered on the default registry unless the caller does so.
package prometheus
