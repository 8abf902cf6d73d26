// Package handler implements an HTTP handler to process GraphQL queries given a
// schema (loaded from SDL) and a map of resolvers for the schema's object types.
package handler

// handler.go implements the handler and it's ServeHTTP method

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

type (
	// Handler stores the invariants (schema and resolvers) used in the GraphQL requests
	Handler struct {
		schema    *ast.Schema
		resolvers Resolvers
		root      interface{}    // value passed as the parent to resolvers of root (query and mutation) fields
		lookup    *fieldLookup   // field indexes of structs used by the default resolver
		intro     *introspection // nil if introspection is turned off

		noIntrospection, noConcurrency             bool
		initialTimeout, pingFrequency, pongTimeout time.Duration
	}
)

// New returns an HTTP handler that executes GraphQL requests against the schema using the resolvers.
// Any schema field without a resolver is resolved from the parent value (see Resolvers).
func New(schema *ast.Schema, resolvers Resolvers, options ...func(*Handler)) *Handler {
	h := &Handler{
		schema:    schema,
		resolvers: resolvers,
		lookup:    newFieldLookup(),
	}
	h.SetOptions(options...)
	if !h.noIntrospection {
		h.intro = newIntrospection(schema)
	}
	return h
}

// ServeHTTP receives a GraphQL query as an HTTP request, executes the
// query (or mutation) and generates an HTTP response or error message.
// Requests to upgrade to a websocket are handed on to the websocket transport.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		h.serveWS(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	g := gqlRequest{h: h}
	switch r.Method {
	case http.MethodGet:
		params := r.URL.Query()
		g.Query = params.Get("query")
		g.OperationName = params.Get("operationName")
		if v := params.Get("variables"); v != "" {
			if err := decodeJSON(strings.NewReader(v), &g.Variables); err != nil {
				writeError(w, http.StatusBadRequest, "Error decoding variables: "+err.Error())
				return
			}
		}
		g.queryOnly = true // a GET must not have side effects

	case http.MethodPost:
		if err := decodeJSON(r.Body, &g); err != nil {
			writeError(w, http.StatusBadRequest, "Error decoding JSON request: "+err.Error())
			return
		}

	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Since variables are sent as JSON (which does not distinguish int/float) we need to decide
	FixNumberVariables(g.Variables)

	// Execute it and write the result or error
	result := g.Execute(r.Context())
	buf, err := json.Marshal(result)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error encoding JSON response: "+err.Error())
		return
	}
	if result.status != 0 {
		w.WriteHeader(result.status)
	}
	_, _ = w.Write(buf)
}

// decodeJSON decodes a request (or variables) keeping numbers as json.Number (see FixNumberVariables)
func decodeJSON(r io.Reader, v interface{}) error {
	decoder := json.NewDecoder(r)
	decoder.UseNumber() // allows us to distinguish ints from floats
	return decoder.Decode(v)
}

// writeError sends a GraphQL error response for a request that could not be executed at all
func writeError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	buf, _ := json.Marshal(gqlResult{Errors: gqlerror.List{withCode(gqlerror.Errorf("%s", message), codeBadRequest)}})
	_, _ = w.Write(buf)
}

// FixNumberVariables goes through the structure created by the JSON decoder, converting any json.Number values to
// either an int64 or a float64.  This assumes that all the JSON numbers were decoded into a json.Number type, rather
// than int/float, by use of the json.Decode.UseNumber() method.
func FixNumberVariables(m map[string]interface{}) {
	for key, val := range m {
		m[key] = fixNumber(val)
	}
}

func fixNumber(val interface{}) interface{} {
	switch v := val.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String() // out of range - leave it for input coercion to reject

	case map[string]interface{}:
		FixNumberVariables(v) // recursively handle nested numbers

	case []interface{}:
		for i := range v {
			v[i] = fixNumber(v[i])
		}
	}
	return val
}
