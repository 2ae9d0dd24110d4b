// Package audit relays security-relevant account events to a caller-supplied
// [Sink] through a buffered, asynchronous [Dispatcher].
//
// The package decides nothing about which events exist beyond naming the
// ones the Engine emits. Sinks own delivery; the dispatcher owns buffering,
// drop accounting and orderly shutdown.
package audit
