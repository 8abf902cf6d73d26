package bookql_test

// End-to-end tests (also see low-level tests in the field, schema, handler, books, config and server packages)

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andrewwphillips/bookql"
	"github.com/dolmen-go/jsonmap"
	"github.com/gorilla/websocket"
	"github.com/posener/wstest"
)

// JsonObject is what json.Unmarshaler produces when it decodes a JSON object.  Note that we use a type alias here,
// hence the equals sign (=), rather than a type definition - otherwise reflect.DeepEqual does not work.
type JsonObject = map[string]interface{}

const allBooks = `{"data":{"books":[{"title":"The Awakening","author":"Kate Chopin"},{"title":"City of Glass","author":"Paul Auster"}]}}`

// TestQuery performs high-level (end to end) tests of GraphQL queries
func TestQuery(t *testing.T) {
	tests := map[string]struct {
		query    string
		expected string // exact response body
	}{
		"all":       {`{ books { title author } }`, allBooks},
		"title":     {`{ books { title } }`, `{"data":{"books":[{"title":"The Awakening"},{"title":"City of Glass"}]}}`},
		"author":    {`{ books { author } }`, `{"data":{"books":[{"author":"Kate Chopin"},{"author":"Paul Auster"}]}}`},
		"reordered": {`{ books { author title } }`, `{"data":{"books":[{"author":"Kate Chopin","title":"The Awakening"},{"author":"Paul Auster","title":"City of Glass"}]}}`},
		"alias":     {`{ list: books { name: title } }`, `{"data":{"list":[{"name":"The Awakening"},{"name":"City of Glass"}]}}`},
		"typename":  {`{ __typename books { __typename } }`, `{"data":{"__typename":"Query","books":[{"__typename":"Book"},{"__typename":"Book"}]}}`},
		"named":     {`query AllBooks { books { title author } }`, allBooks},
		"fragment":  {`{ books { ...B } } fragment B on Book { title author }`, allBooks},
	}

	h := bookql.MustRun()
	for name, data := range tests {
		body := post(t, h, data.query)
		Assertf(t, body == data.expected, "%10s: expected %s got %s", name, data.expected, body)
	}
}

// TestUnknownField checks that querying a field that Book does not have is a validation error with no data
func TestUnknownField(t *testing.T) {
	h := bookql.MustRun()
	body := post(t, h, `{ books { isbn } }`)

	var result struct {
		Data   *json.RawMessage
		Errors []struct {
			Message    string
			Extensions JsonObject
		}
	}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("error %v decoding %s", err, body)
	}
	Assertf(t, result.Data == nil, "expected no data got %s", body)
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error got %d (%s)", len(result.Errors), body)
	}
	Assertf(t, result.Errors[0].Message == `Cannot query field "isbn" on type "Book".`, "expected message got %q", result.Errors[0].Message)
	Assertf(t, result.Errors[0].Extensions["code"] == "GRAPHQL_VALIDATION_FAILED", "expected code got %v", result.Errors[0].Extensions["code"])

	// The whole error envelope, with only the code in the extensions
	const expected = `{"errors":[{"message":"Cannot query field \"isbn\" on type \"Book\".","locations":[{"line":1,"column":11}],"extensions":{"code":"GRAPHQL_VALIDATION_FAILED"}}]}`
	Assertf(t, body == expected, "expected %s got %s", expected, body)
}

// TestOrder checks that the fields of each book are in the order of the query
func TestOrder(t *testing.T) {
	h := bookql.MustRun()
	for _, order := range [][]string{{"title", "author"}, {"author", "title"}} {
		body := post(t, h, "{ books { "+strings.Join(order, " ")+" } }")

		var result struct {
			Data struct{ Books []jsonmap.Ordered }
		}
		if err := json.Unmarshal([]byte(body), &result); err != nil {
			t.Fatalf("error %v decoding %s", err, body)
		}
		Assertf(t, len(result.Data.Books) == 2, "expected 2 books got %d", len(result.Data.Books))
		for i, book := range result.Data.Books {
			Assertf(t, reflect.DeepEqual(book.Order, order), "book %d: expected fields %v got %v", i, order, book.Order)
		}
	}
}

// TestConcurrent sends the same query from many clients at once - the results must all be the same
func TestConcurrent(t *testing.T) {
	server := httptest.NewServer(bookql.MustRun())
	defer server.Close()

	const clients = 20
	var wg sync.WaitGroup
	results := make([]string, clients)
	errs := make([]error, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := http.Post(server.URL, "application/json", strings.NewReader(`{"query":"{ books { title author } }"}`))
			if err != nil {
				errs[i] = err
				return
			}
			defer resp.Body.Close()
			buf, err := io.ReadAll(resp.Body)
			results[i], errs[i] = strings.TrimSpace(string(buf)), err
		}(i)
	}
	wg.Wait()

	for i := range results {
		Assertf(t, errs[i] == nil, "client %d: expected no error got %v", i, errs[i])
		Assertf(t, results[i] == allBooks, "client %d: expected %s got %s", i, allBooks, results[i])
	}
}

func TestOptions(t *testing.T) {
	const query = `{ __schema { queryType { name } } }`

	body := post(t, bookql.MustRun(), query)
	Assertf(t, body == `{"data":{"__schema":{"queryType":{"name":"Query"}}}}`, "expected introspection result got %s", body)

	body = post(t, bookql.MustRun(bookql.NoIntrospection(true), bookql.NoConcurrency(true)), query)
	Assertf(t, strings.Contains(body, "introspection is not allowed"), "expected introspection error got %s", body)

	// Queries still work without introspection
	body = post(t, bookql.MustRun(bookql.NoIntrospection(true)), `{ books { title author } }`)
	Assertf(t, body == allBooks, "expected %s got %s", allBooks, body)
}

// TestWebSocketOptions checks the websocket timing options are passed on to the handler
func TestWebSocketOptions(t *testing.T) {
	dial := func(h http.Handler) *websocket.Conn {
		dialer := wstest.NewDialer(h)
		dialer.Subprotocols = []string{"graphql-transport-ws"}
		conn, _, err := dialer.Dial("ws://localhost/graphql", nil)
		if err != nil {
			t.Fatalf("dial error %v", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		return conn
	}

	// No connection_init within the initial timeout closes the connection
	conn := dial(bookql.MustRun(bookql.InitialTimeout(50 * time.Millisecond)))
	_, _, err := conn.ReadMessage()
	Assertf(t, websocket.IsCloseError(err, 4408), "InitialTimeout: expected close 4408 got %v", err)
	_ = conn.Close()

	// After the ack the server sends pings at the requested frequency and still answers queries
	conn = dial(bookql.MustRun(bookql.PingFrequency(50*time.Millisecond), bookql.PongTimeout(time.Second)))
	defer conn.Close()
	for i, msg := range []string{`{"type":"connection_init"}`, `{"type":"subscribe","id":"1","payload":{"query":"{ books { title } }"}}`} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("send %d: error %v", i, err)
		}
	}
	const next = `{"type":"next","id":"1","payload":{"data":{"books":[{"title":"The Awakening"},{"title":"City of Glass"}]}}}`
	seen := map[string]bool{}
	for !seen[`{"type":"ping"}`] || !seen[`{"type":"complete","id":"1"}`] {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("PingFrequency: read error %v after %v", err, seen)
		}
		seen[strings.TrimSpace(string(msg))] = true // WriteJSON adds a newline
	}
	Assertf(t, seen[`{"type":"connection_ack"}`], "PingFrequency: expected connection_ack got %v", seen)
	Assertf(t, seen[next], "PingFrequency: expected %s got %v", next, seen)
}

func TestGet(t *testing.T) {
	h := bookql.MustRun()
	request := httptest.NewRequest(http.MethodGet, "/graphql?query=%7B%20books%20%7B%20title%20author%20%7D%20%7D", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, request)
	Assertf(t, w.Code == http.StatusOK, "expected status 200 got %d", w.Code)
	Assertf(t, strings.TrimSpace(w.Body.String()) == allBooks, "expected %s got %s", allBooks, w.Body.String())
}

func TestSchema(t *testing.T) {
	const expected = "type Book {\n  title: String\n  author: String\n}\n\ntype Query {\n  books: [Book]\n}\n"
	Assertf(t, bookql.Schema() == expected, "expected schema %q got %q", expected, bookql.Schema())
}

// post sends a query to the handler and returns the response body
func post(t *testing.T, h http.Handler, query string) string {
	t.Helper()
	buf, _ := json.Marshal(JsonObject{"query": query})
	request := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(string(buf)))
	request.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, request)
	if w.Code != http.StatusOK {
		t.Errorf("X\tquery %q: expected status 200 got %d", query, w.Code)
	}
	return strings.TrimSpace(w.Body.String())
}

func Assertf(t *testing.T, succeeded bool, format string, args ...interface{}) {
	const (
		succeed = "\u2713" // tick
		failed  = "X"      //"\u2717" // cross
	)

	t.Helper()
	if !succeeded {
		t.Errorf("%s\t"+format, append([]interface{}{failed}, args...)...)
	} else {
		t.Logf("%s\t"+format, append([]interface{}{succeed}, args...)...)
	}
}
