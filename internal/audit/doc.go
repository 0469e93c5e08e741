// Package audit is the security-event port: the Event model, Sink
// implementations (channel, JSON lines, zap, fan-out) and an asynchronous
// Dispatcher.
//
// The package decides nothing about which events exist; callers choose the
// kind and fields. It must not import skyAuth.
package audit
