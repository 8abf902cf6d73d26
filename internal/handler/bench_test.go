package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andrewwphillips/bookql/internal/handler"
)

type benchBook struct {
	Title, Author string
}

func BenchmarkQuery(b *testing.B) {
	books := make([]benchBook, 100)
	for i := range books {
		books[i] = benchBook{Title: "Title", Author: "Author"}
	}
	h := newHandler(b, "type Query { books: [Book] } type Book { title: String author: String }", nil,
		handler.Root(struct{ Books []benchBook }{books}))
	const body = `{"query":"{ books { title author } }"}`

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		request := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, request)
		if w.Code != http.StatusOK {
			b.Fatalf("expected status 200 got %d", w.Code)
		}
	}
}
