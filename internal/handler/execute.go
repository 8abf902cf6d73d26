package handler

// execute.go handles the execution of a GraphQL request

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

// Error codes added to the "extensions" of request errors (same codes as Apollo Server)
const (
	codeParseFailed      = "GRAPHQL_PARSE_FAILED"
	codeValidationFailed = "GRAPHQL_VALIDATION_FAILED"
	codeBadUserInput     = "BAD_USER_INPUT"
	codeBadRequest       = "BAD_REQUEST"
	codeOperationUnknown = "OPERATION_RESOLUTION_FAILURE"
)

type (
	// gqlRequest decodes and handles each GraphQL request
	gqlRequest struct {
		h *Handler

		// These are decoded from the http request body (JSON) or URL parameters
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`

		queryOnly bool // reject mutations (eg for a GET request)
	}

	// gqlResult contains the result (or errors) of the request to be encoded in JSON
	gqlResult struct {
		Data   interface{}   `json:"data,omitempty"`
		Errors gqlerror.List `json:"errors,omitempty"`

		status int // HTTP status if not 200 (OK)
	}
)

// Execute parses, validates and runs the request and returns the result
func (g *gqlRequest) Execute(ctx context.Context) (r gqlResult) {
	if strings.TrimSpace(g.Query) == "" {
		r.status = http.StatusBadRequest
		r.Errors = gqlerror.List{withCode(gqlerror.Errorf("GraphQL operations must contain a non-empty `query`"), codeBadRequest)}
		return
	}

	// First analyse and validate the query string
	query, pErr := parser.ParseQuery(&ast.Source{Name: "query", Input: g.Query})
	if pErr != nil {
		r.Errors = gqlerror.List{withCode(pErr, codeParseFailed)}
		return
	}
	if list := validator.Validate(g.h.schema, query); len(list) > 0 {
		for _, e := range list {
			withCode(e, codeValidationFailed)
		}
		r.Errors = list
		return
	}

	operation, gErr := selectOperation(query.Operations, g.OperationName)
	if gErr != nil {
		r.Errors = gqlerror.List{gErr}
		return
	}

	var root *ast.Definition
	switch operation.Operation {
	case ast.Query:
		root = g.h.schema.Query
	case ast.Mutation:
		if g.queryOnly {
			r.status = http.StatusMethodNotAllowed
			r.Errors = gqlerror.List{withCode(gqlerror.Errorf("Can only perform a mutation operation from a POST request"), codeBadRequest)}
			return
		}
		root = g.h.schema.Mutation
	case ast.Subscription:
		r.Errors = gqlerror.List{withCode(gqlerror.Errorf("Subscriptions are not supported"), codeBadRequest)}
		return
	}
	if root == nil {
		r.Errors = gqlerror.List{withCode(gqlerror.Errorf("Schema is not configured to execute %s operation", operation.Operation), codeBadRequest)}
		return
	}

	op := gqlOperation{Handler: g.h}

	// Get variables associated with this operation (coerced to the declared types, with defaults)
	variables, vErr := validator.VariableValues(g.h.schema, operation, g.Variables)
	if vErr != nil {
		r.Errors = gqlerror.List{withCode(vErr, codeBadUserInput)}
		return
	}
	op.variables = variables

	concurrent := operation.Operation == ast.Query && !g.h.noConcurrency
	data, err := op.GetSelections(ctx, operation.SelectionSet, root, g.h.root, nil, concurrent)
	switch {
	case errors.Is(err, errNull):
		r.Data = json.RawMessage("null") // a non-null root field was null so the whole result is null
	case err != nil:
		op.addError(err, nil, nil) // context cancelled or expired
	default:
		r.Data = data
	}
	r.Errors = op.errors
	return
}

// selectOperation finds the operation to run: the one named by the request or the only one in the query
func selectOperation(operations ast.OperationList, name string) (*ast.OperationDefinition, *gqlerror.Error) {
	if name == "" {
		if len(operations) != 1 {
			return nil, withCode(gqlerror.Errorf("Must provide operation name if query contains multiple operations"), codeOperationUnknown)
		}
		return operations[0], nil
	}
	for _, operation := range operations {
		if operation.Name == name {
			return operation, nil
		}
	}
	return nil, withCode(gqlerror.Errorf("Unknown operation named %q", name), codeOperationUnknown)
}

// withCode converts any error to a GraphQL error (if not already) and sets extensions.code.
// The parser's "file" extension (name of the query source) is internal so is removed.
func withCode(err error, code string) *gqlerror.Error {
	var gErr *gqlerror.Error
	if !errors.As(err, &gErr) {
		gErr = gqlerror.WrapPath(nil, err)
	}
	if gErr.Extensions == nil {
		gErr.Extensions = make(map[string]interface{}, 1)
	}
	delete(gErr.Extensions, "file")
	gErr.Extensions["code"] = code
	return gErr
}
