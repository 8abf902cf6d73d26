// Package bookql serves a small, fixed collection of books through a GraphQL API.
// (BOOKQL might be an acronym for BOOK Query Language.)
//
// The schema has one object type and one query:
//
//	type Book {
//	  title: String
//	  author: String
//	}
//
//	type Query {
//	  books: [Book]
//	}
//
// New returns an http.Handler that accepts GraphQL requests (POST or GET, plus
// websockets using the graphql-transport-ws or graphql-ws sub-protocols).
// Here is the code for a complete server:
//
//	package main
//
//	import (
//		"net/http"
//
//		"github.com/andrewwphillips/bookql"
//	)
//
//	func main() {
//		http.Handle("/graphql", bookql.MustRun())
//		http.ListenAndServe(":4000", nil)
//	}
//
// A query like this:
//
//	{
//	  books { title author }
//	}
//
// returns this JSON (fields are always in the order they were requested):
//
//	{
//	  "data": {
//	    "books": [
//	      {"title": "The Awakening", "author": "Kate Chopin"},
//	      {"title": "City of Glass", "author": "Paul Auster"}
//	    ]
//	  }
//	}
//
// The cmd/bookql program runs the server configured from environment variables (see internal/config).
package bookql
