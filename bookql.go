package bookql

// bookql.go provides New for creating the GraphQL HTTP handler of the book API

import (
	"fmt"
	"net/http"

	"github.com/andrewwphillips/bookql/internal/books"
	"github.com/andrewwphillips/bookql/internal/handler"
	"github.com/andrewwphillips/bookql/internal/schema"
)

// New loads the schema, checks the resolvers against it and returns the HTTP handler that handles GraphQL
// requests.  The options control the handler - eg NoIntrospection(true).
func New(opts ...func(*options)) (http.Handler, error) {
	s, err := schema.Load(books.SchemaName, books.SchemaSource)
	if err != nil {
		return nil, err
	}
	resolvers := books.Resolvers()
	if err := schema.CheckResolvers(s, resolvers); err != nil {
		return nil, fmt.Errorf("resolvers do not match schema: %w", err)
	}
	return handler.New(s, resolvers, handlerOptions(opts)...), nil
}

// Schema returns the GraphQL schema (SDL) of the API
func Schema() string {
	return books.SchemaSource
}
