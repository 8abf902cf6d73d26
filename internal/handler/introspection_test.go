package handler_test

import (
	"encoding/json"
	"strings"
	"testing"
)

const introspectionSchema = `
"Something to read"
type Book {
	title: String
	author: String
	isbn: String @deprecated(reason: "not used")
}
type Query {
	books: [Book]
	book(title: String!, exact: Boolean = true): Book
}
enum Unit { METRE FOOT @deprecated }
`

var introspectionData = map[string]struct {
	query    string
	expected string // JSON
}{
	"QueryType": {`{ __schema { queryType { name kind } mutationType { name } } }`,
		`{"__schema":{"queryType":{"name":"Query","kind":"OBJECT"},"mutationType":null}}`},
	"Type": {`{ __type(name: "Book") { name kind description } }`,
		`{"__type":{"name":"Book","kind":"OBJECT","description":"Something to read"}}`},
	"UnknownType": {`{ __type(name: "Magazine") { name } }`,
		`{"__type":null}`},
	"Fields": {`{ __type(name: "Book") { fields { name type { kind name } } } }`,
		`{"__type":{"fields":[{"name":"title","type":{"kind":"SCALAR","name":"String"}},{"name":"author","type":{"kind":"SCALAR","name":"String"}}]}}`},
	"Deprecated": {`{ __type(name: "Book") { fields(includeDeprecated: true) { name isDeprecated deprecationReason } } }`,
		`{"__type":{"fields":[{"name":"title","isDeprecated":false,"deprecationReason":null},` +
			`{"name":"author","isDeprecated":false,"deprecationReason":null},{"name":"isbn","isDeprecated":true,"deprecationReason":"not used"}]}}`},
	"List": {`{ __type(name: "Query") { fields { name type { kind ofType { kind name } } } } }`,
		`{"__type":{"fields":[{"name":"books","type":{"kind":"LIST","ofType":{"kind":"OBJECT","name":"Book"}}},` +
			`{"name":"book","type":{"kind":"OBJECT","ofType":null}}]}}`},
	"Args": {`{ __type(name: "Query") { fields { args { name defaultValue type { kind ofType { name } } } } } }`,
		`{"__type":{"fields":[{"args":[]},{"args":[{"name":"title","defaultValue":null,"type":{"kind":"NON_NULL","ofType":{"name":"String"}}},` +
			`{"name":"exact","defaultValue":"true","type":{"kind":"SCALAR","ofType":null}}]}]}}`},
	"Enum": {`{ __type(name: "Unit") { kind enumValues { name } } }`,
		`{"__type":{"kind":"ENUM","enumValues":[{"name":"METRE"}]}}`},
	"Typename": {`{ __type(name: "Book") { __typename } }`,
		`{"__type":{"__typename":"__Type"}}`},
}

func TestIntrospection(t *testing.T) {
	h := newHandler(t, introspectionSchema, nil)
	for name, data := range introspectionData {
		w := post(h, data.query, "", "")
		var result struct {
			Data   json.RawMessage
			Errors []struct{ Message string }
		}
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			t.Fatalf("Decode  : %12s: error %v decoding %q", name, err, w.Body.String())
		}
		Assertf(t, result.Errors == nil, "Errors  : %12s: expected no errors got %v", name, result.Errors)
		Assertf(t, string(result.Data) == data.expected, "Data    : %12s: expected %s got %s", name, data.expected, result.Data)
	}
}

func TestIntrospectionTypes(t *testing.T) {
	h := newHandler(t, introspectionSchema, nil)
	w := post(h, `{ __schema { types { name } directives { name } } }`, "", "")
	body := w.Body.String()
	for _, name := range []string{`"Book"`, `"Query"`, `"Unit"`, `"String"`, `"Boolean"`, `"__Schema"`, `"__Type"`, `"skip"`, `"include"`, `"deprecated"`} {
		Assertf(t, strings.Contains(body, `{"name":`+name+`}`), "%12s: expected in types or directives", name)
	}
	// types are sorted by name so Book comes before Query
	Assertf(t, strings.Index(body, `"Book"`) < strings.Index(body, `"Query"`), "expected types in name order got %s", body)
}
