package handler

// options.go handles setting of handler options

// The use of closures for options makes it simple for the caller to add any desired options.  The option
// functions below (NoIntrospection, etc) return a closure with the signature func(*Handler) that captures the
// option's parameter.  handler.New() passes its trailing (variadic) parameters to SetOptions() which runs each
// closure against the handler. So for example in this call:
//
//   handler.New(schema, resolvers, handler.NoConcurrency(true))
//
// the closure returned from handler.NoConcurrency(true) sets the noConcurrency field of the handler.
//
// A pitfall is that if the same option function is used more than once then only the last use has any effect.

import (
	"time"
)

const (
	defaultInitialTimeout = 10 * time.Second // how long to wait for connection_init after the WS is opened
	defaultPingFrequency  = 20 * time.Second // how often to send a ping (ka in old protocol) message to the client
	defaultPongTimeout    = 5 * time.Second  // how long to wait for a pong after sending a ping
)

// SetOptions takes a slice of handler options (closures) and executes them
func (h *Handler) SetOptions(options ...func(*Handler)) {
	for _, option := range options {
		option(h)
	}

	// Set any options that still have their unset (zero) value
	if h.initialTimeout == 0 {
		h.initialTimeout = defaultInitialTimeout
	}
	if h.pingFrequency == 0 {
		h.pingFrequency = defaultPingFrequency
	}
	if h.pongTimeout == 0 {
		h.pongTimeout = defaultPongTimeout
	}
}

// Root sets the value that is passed as the parent to the resolvers of the root query and mutation fields.
// Root fields without a resolver get their value from it using the default resolver.
func Root(value interface{}) func(*Handler) {
	return func(h *Handler) {
		h.root = value
	}
}

// NoIntrospection turns off all introspection queries (__schema and __type)
func NoIntrospection(on bool) func(*Handler) {
	return func(h *Handler) {
		h.noIntrospection = on
	}
}

// NoConcurrency turns off concurrent execution of the root fields of a query
func NoConcurrency(on bool) func(*Handler) {
	return func(h *Handler) {
		h.noConcurrency = on
	}
}

// InitialTimeout sets the length time to wait from when the websocket is opened until the
// "connection_init" message is received. If the message is not received from the client
// within the time limit then the WS is closed.
func InitialTimeout(timeout time.Duration) func(*Handler) {
	return func(h *Handler) {
		h.initialTimeout = timeout // timeout value is "captured" and returned as part of the func
	}
}

// PingFrequency says how often to send a "ping" message (if the client connects with new
// protocol) or a "ka" (keep alive) message (old protocol)
func PingFrequency(freq time.Duration) func(*Handler) {
	return func(h *Handler) {
		h.pingFrequency = freq
	}
}

// PongTimeout set the length time to wait for a "pong" message from the client after
// a "ping" message is sent (new protocol only). If no message is received from the client
// within the time limit then the WS is closed.
func PongTimeout(timeout time.Duration) func(*Handler) {
	return func(h *Handler) {
		h.pongTimeout = timeout
	}
}
