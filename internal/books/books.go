// Package books holds the book collection served by the GraphQL API: the
// schema (SDL), the fixed list of books and the resolvers that return them.
package books

import (
	"context"
	_ "embed"

	"github.com/andrewwphillips/bookql/internal/handler"
)

// SchemaName is used to identify the schema source in error messages
const SchemaName = "schema.graphql"

// SchemaSource is the GraphQL schema of the API
//
//go:embed schema.graphql
var SchemaSource string

// Book is the only object type of the schema.  Fields are resolved by name (title, author).
type Book struct {
	Title  string
	Author string
}

// collection is never modified - All returns a copy
var collection = [...]Book{
	{Title: "The Awakening", Author: "Kate Chopin"},
	{Title: "City of Glass", Author: "Paul Auster"},
}

// All returns the books of the collection (in the same order every time)
func All() []Book {
	r := make([]Book, len(collection))
	copy(r, collection[:])
	return r
}

// Resolvers returns the resolver map for the schema.  Only the root "books" field needs a
// resolver as the fields of Book are found by name using the default resolver.
func Resolvers() handler.Resolvers {
	return handler.Resolvers{
		"Query": {
			"books": func(ctx context.Context, parent interface{}, args map[string]interface{}) (interface{}, error) {
				return All(), nil
			},
		},
	}
}
