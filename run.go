package bookql

// run.go provides the MustRun function for quickly creating the GraphQL http handler

import (
	"net/http"
)

// MustRun is the same as New but panics on error.  New can only fail if the embedded schema
// is invalid or the resolvers don't match it, which is a bug rather than a run-time problem.
func MustRun(opts ...func(*options)) http.Handler {
	h, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return h
}
