// Package schema loads a GraphQL schema from SDL and checks that a map of
// resolvers matches it.  This goes hand-in-hand with the "handler" which uses
// the loaded schema and those same resolvers to fulfill queries.
package schema

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/andrewwphillips/bookql/internal/handler"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

var nameRegex = regexp.MustCompile(`^[_a-zA-Z][_a-zA-Z0-9]*$`)

// Load parses and validates a schema written in GraphQL SDL.  The name is used in error messages.
func Load(name, sdl string) (*ast.Schema, error) {
	if strings.TrimSpace(sdl) == "" {
		return nil, fmt.Errorf("schema %q is empty", name)
	}
	s, err := gqlparser.LoadSchema(&ast.Source{Name: name, Input: sdl})
	if err != nil {
		return nil, fmt.Errorf("loading schema %q: %w", name, err)
	}
	if s.Query == nil {
		return nil, fmt.Errorf("schema %q has no query type", name)
	}
	return s, nil
}

// MustLoad is the same as Load but panics on error
func MustLoad(name, sdl string) *ast.Schema {
	s, err := Load(name, sdl)
	if err != nil {
		panic(err)
	}
	return s
}

// CheckResolvers makes sure that every resolver is for a field of an object type of the schema.
// All problems are returned (joined into one error), or nil if the resolvers are OK.
func CheckResolvers(s *ast.Schema, resolvers handler.Resolvers) error {
	var errs []error

	// Sort the type names so that errors are always in the same order
	typeNames := make([]string, 0, len(resolvers))
	for typeName := range resolvers {
		typeNames = append(typeNames, typeName)
	}
	sort.Strings(typeNames)

	for _, typeName := range typeNames {
		if !validGraphQLName(typeName) {
			errs = append(errs, fmt.Errorf("resolvers given for %q which is not a valid type name", typeName))
			continue
		}
		def := s.Types[typeName]
		if def == nil {
			errs = append(errs, fmt.Errorf("resolvers given for type %q which is not in the schema", typeName))
			continue
		}
		if def.Kind != ast.Object {
			errs = append(errs, fmt.Errorf("resolvers given for %q which is %s (not an object type)", typeName, def.Kind))
			continue
		}

		fields := resolvers[typeName]
		fieldNames := make([]string, 0, len(fields))
		for fieldName := range fields {
			fieldNames = append(fieldNames, fieldName)
		}
		sort.Strings(fieldNames)
		for _, fieldName := range fieldNames {
			switch {
			case !validGraphQLName(fieldName):
				errs = append(errs, fmt.Errorf("resolver %s.%s is not a valid field name", typeName, fieldName))
			case def.Fields.ForName(fieldName) == nil:
				errs = append(errs, fmt.Errorf("resolver %s.%s is not a field in the schema", typeName, fieldName))
			case fields[fieldName] == nil:
				errs = append(errs, fmt.Errorf("resolver %s.%s is nil", typeName, fieldName))
			}
		}
	}
	return errors.Join(errs...)
}

// validGraphQLName checks that a string contains a valid GraphQL identifier (not using the reserved "__" prefix)
func validGraphQLName(s string) bool {
	if strings.HasPrefix(s, "__") {
		return false // reserved names
	}
	return nameRegex.MatchString(s)
}
