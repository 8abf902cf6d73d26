package handler

// result.go is used to generate the query output

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"

	"github.com/dolmen-go/jsonmap"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

type (
	// gqlOperation controls an operation (query/mutation) of a GraphQL request
	gqlOperation struct {
		*Handler // required for the schema, resolvers etc

		variables map[string]interface{} // variables valid for this op (extracted from the request)

		mu     sync.Mutex    // protects errors as root fields may be resolved concurrently
		errors gqlerror.List // field errors - the query still returns (partial) data
	}

	// gqlValue contains the result of a query, or an error, plus the name
	gqlValue struct {
		name  string      // name/alias of the entry/resolver
		value interface{} // scalar, nested result (jsonmap.Ordered), list ([]interface{})
		err   error       // errNull (already reported) or context error, whence value should be ignored
	}

	// fieldGroup is all the fields of a selection set with the same response name (alias or name)
	fieldGroup struct {
		name   string
		fields []*ast.Field
	}
)

// errNull signals that a value was null where the schema says it can't be.  The error has already been
// recorded so the receiver just has to make itself null, or pass errNull up if it is also non-nullable.
var errNull = errors.New("null value in non-null position")

// GetSelections resolves the selections in a query by finding and evaluating the corresponding resolver(s)
// Returns a jsonmap.Ordered (a map of values and a slice that remembers the order they were added) that contains an
// entry for each selection, where the map "key" is the name of the entry/resolver and the value is:
//
//	a) scalar value (stored in an interface{})
//	b) a nested jsonmap.Ordered if the field is of an object type
//	c) a slice (ie []interface{}) if the field is a list
//
// Parameters:
//
//	ctx = a Go context that could expire at any time
//	set = list of selections from a GraphQL query to be resolved
//	def = the object type (from the schema) of the value being resolved
//	parent = the value passed to the resolvers of the fields (nil for root query)
//	path = location of the object in the response (used in error messages)
//	concurrent = whether to run resolvers in separate Go routines
func (op *gqlOperation) GetSelections(ctx context.Context, set ast.SelectionSet, def *ast.Definition,
	parent interface{}, path ast.Path, concurrent bool,
) (jsonmap.Ordered, error) {
	groups := op.collectFields(set, def, nil, make(map[string]int), make(map[string]bool))

	resultChans := make([]<-chan gqlValue, 0, len(groups))
	for _, group := range groups {
		ch := make(chan gqlValue, 1)
		if concurrent {
			go func(group fieldGroup) {
				ch <- op.resolveField(ctx, def, parent, group, path)
			}(group)
		} else {
			ch <- op.resolveField(ctx, def, parent, group, path)
		}
		resultChans = append(resultChans, ch)
	}

	// Now extract the values (will block until all values have been sent)
	r := jsonmap.Ordered{
		Data:  make(map[string]interface{}, len(groups)),
		Order: make([]string, 0, len(groups)),
	}
	var nullErr error
	for _, ch := range resultChans {
		select {
		case v := <-ch:
			if v.err != nil {
				if !errors.Is(v.err, errNull) {
					return jsonmap.Ordered{}, v.err
				}
				nullErr = v.err // wait for the other values so that all their errors are recorded
				continue
			}
			r.Order = append(r.Order, v.name)
			r.Data[v.name] = v.value
		case <-ctx.Done():
			return jsonmap.Ordered{}, ctx.Err()
		}
	}
	if nullErr != nil {
		return jsonmap.Ordered{}, nullErr
	}
	return r, nil
}

// collectFields flattens a selection set (expanding fragments and dropping anything excluded by @skip/@include)
// into groups of fields keyed by their response name, in the order they first appear.
func (op *gqlOperation) collectFields(set ast.SelectionSet, def *ast.Definition, groups []fieldGroup,
	index map[string]int, visited map[string]bool,
) []fieldGroup {
	for _, s := range set {
		switch sel := s.(type) {
		case *ast.Field:
			if !op.included(sel.Directives) {
				continue
			}
			name := sel.Alias
			if name == "" {
				name = sel.Name
			}
			if i, ok := index[name]; ok {
				groups[i].fields = append(groups[i].fields, sel)
				continue
			}
			index[name] = len(groups)
			groups = append(groups, fieldGroup{name: name, fields: []*ast.Field{sel}})

		case *ast.InlineFragment:
			if !op.included(sel.Directives) || !op.fragmentApplies(sel.TypeCondition, def) {
				continue
			}
			groups = op.collectFields(sel.SelectionSet, def, groups, index, visited)

		case *ast.FragmentSpread:
			if visited[sel.Name] || !op.included(sel.Directives) || sel.Definition == nil {
				continue
			}
			visited[sel.Name] = true
			if !op.fragmentApplies(sel.Definition.TypeCondition, def) {
				continue
			}
			groups = op.collectFields(sel.Definition.SelectionSet, def, groups, index, visited)
		}
	}
	return groups
}

// included evaluates @skip and @include directives
func (op *gqlOperation) included(directives ast.DirectiveList) bool {
	if d := directives.ForName("skip"); d != nil {
		if skip, _ := d.ArgumentMap(op.variables)["if"].(bool); skip {
			return false
		}
	}
	if d := directives.ForName("include"); d != nil {
		if include, _ := d.ArgumentMap(op.variables)["if"].(bool); !include {
			return false
		}
	}
	return true
}

// fragmentApplies checks if a fragment's type condition matches the type of object being resolved
func (op *gqlOperation) fragmentApplies(typeCondition string, def *ast.Definition) bool {
	if typeCondition == "" || typeCondition == def.Name {
		return true
	}
	conditionDef := op.schema.Types[typeCondition]
	if conditionDef == nil || (conditionDef.Kind != ast.Interface && conditionDef.Kind != ast.Union) {
		return false
	}
	for _, possible := range op.schema.GetPossibleTypes(conditionDef) {
		if possible.Name == def.Name {
			return true
		}
	}
	return false
}

// resolveField gets the value for one response entry by calling the field's resolver then converting the
// returned value to the field's type (recursively resolving the sub-selections of objects).
func (op *gqlOperation) resolveField(ctx context.Context, def *ast.Definition, parent interface{}, group fieldGroup, path ast.Path) gqlValue {
	f := group.fields[0]
	path = appendPath(path, ast.PathName(group.name))

	if f.Name == "__typename" {
		return gqlValue{name: group.name, value: def.Name}
	}
	fieldDef := def.Fields.ForName(f.Name)
	if fieldDef == nil {
		// should have been caught in validation
		op.addError(fmt.Errorf("cannot query field %q on type %q", f.Name, def.Name), path, f.Position)
		return gqlValue{name: group.name}
	}

	var raw interface{}
	var err error
	if op.isIntrospection(def, f.Name) {
		if op.intro == nil {
			err = errors.New("GraphQL introspection is not allowed")
		} else {
			raw, err = op.lookup.resolve(ctx, op.intro, f.Name, f.ArgumentMap(op.variables))
		}
	} else {
		raw, err = op.resolve(ctx, def.Name, f.Name, parent, f.ArgumentMap(op.variables))
	}
	if err != nil {
		op.addError(err, path, f.Position)
		if fieldDef.Type.NonNull {
			return gqlValue{name: group.name, err: errNull}
		}
		return gqlValue{name: group.name}
	}

	v, err := op.complete(ctx, fieldDef.Type, def.Name+"."+f.Name, group.fields, raw, path)
	return gqlValue{name: group.name, value: v, err: err}
}

// isIntrospection returns true for the __schema and __type fields that are added to the root query type
func (op *gqlOperation) isIntrospection(def *ast.Definition, name string) bool {
	return def == op.schema.Query && (name == "__schema" || name == "__type")
}

// complete converts a value returned by a resolver to the GraphQL type t.  It returns errNull if the value ends
// up null but t is non-nullable (the error will have already been recorded).
// Parameters:
//   - t: the (possibly wrapped) GraphQL type of the value
//   - fieldName: "Type.field" of the field being resolved (used in error messages)
//   - fields: the fields with the same response name (used to merge their sub-selections)
//   - v: value returned from the resolver (or element of a list)
//   - path: location of the value in the response
func (op *gqlOperation) complete(ctx context.Context, t *ast.Type, fieldName string, fields []*ast.Field,
	v interface{}, path ast.Path,
) (interface{}, error) {
	rv := indirect(reflect.ValueOf(v))
	if !rv.IsValid() {
		if t.NonNull {
			op.addError(fmt.Errorf("Cannot return null for non-nullable field %s.", fieldName), path, fields[0].Position)
			return nil, errNull
		}
		return nil, nil
	}

	// nullable returns null for the value or errNull if it can't be null
	nullable := func(err error) (interface{}, error) {
		if !errors.Is(err, errNull) {
			return nil, err // context error
		}
		if t.NonNull {
			return nil, errNull
		}
		return nil, nil
	}

	if t.Elem != nil {
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			op.addError(fmt.Errorf("Expected a list for field %s, got %s", fieldName, rv.Type()), path, fields[0].Position)
			return nullable(errNull)
		}
		list := make([]interface{}, rv.Len())
		for i := range list {
			item, err := op.complete(ctx, t.Elem, fieldName, fields, rv.Index(i).Interface(), appendPath(path, ast.PathIndex(i)))
			if err != nil {
				return nullable(err)
			}
			list[i] = item
		}
		return list, nil
	}

	def := op.schema.Types[t.NamedType]
	if def == nil {
		op.addError(fmt.Errorf("Unknown type %q for field %s", t.NamedType, fieldName), path, fields[0].Position)
		return nullable(errNull)
	}
	switch def.Kind {
	case ast.Object, ast.Interface, ast.Union:
		objDef, err := op.objectType(def, rv)
		if err != nil {
			op.addError(err, path, fields[0].Position)
			return nullable(errNull)
		}
		var set ast.SelectionSet
		for _, f := range fields {
			set = append(set, f.SelectionSet...)
		}
		r, err := op.GetSelections(ctx, set, objDef, rv.Interface(), path, false)
		if err != nil {
			return nullable(err)
		}
		return r, nil

	case ast.Enum:
		name, ok := enumValue(rv)
		if !ok || def.EnumValues.ForName(name) == nil {
			op.addError(fmt.Errorf("Enum %q cannot represent value: %v", def.Name, rv.Interface()), path, fields[0].Position)
			return nullable(errNull)
		}
		return name, nil

	default:
		r, err := serializeScalar(def.Name, rv)
		if err != nil {
			op.addError(err, path, fields[0].Position)
			return nullable(errNull)
		}
		return r, nil
	}
}

// objectType finds the concrete object type of a value.  For an interface or union the value must have a
// TypeName() method that returns the name of one of its possible types.
func (op *gqlOperation) objectType(def *ast.Definition, rv reflect.Value) (*ast.Definition, error) {
	if def.Kind == ast.Object {
		return def, nil
	}
	if named, ok := rv.Interface().(interface{ TypeName() string }); ok {
		for _, possible := range op.schema.GetPossibleTypes(def) {
			if possible.Name == named.TypeName() {
				return possible, nil
			}
		}
		return nil, fmt.Errorf("type %q is not a possible type of %q", named.TypeName(), def.Name)
	}
	return nil, fmt.Errorf("cannot determine the object type of %s for abstract type %q", rv.Type(), def.Name)
}

// addError records a field error (or any error if path is nil)
func (op *gqlOperation) addError(err error, path ast.Path, pos *ast.Position) {
	gErr := gqlerror.WrapPath(path, err)
	if pos != nil {
		gErr.Locations = []gqlerror.Location{{Line: pos.Line, Column: pos.Column}}
	}
	op.mu.Lock()
	op.errors = append(op.errors, gErr)
	op.mu.Unlock()
}

// appendPath returns a new path (so that paths of sibling values, that may be used concurrently, don't share memory)
func appendPath(path ast.Path, elem ast.PathElement) ast.Path {
	r := make(ast.Path, len(path), len(path)+1)
	copy(r, path)
	return append(r, elem)
}

// indirect follows pointers and interfaces returning an invalid value if it finds a nil
func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	if v.IsValid() {
		switch v.Kind() {
		case reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			if v.IsNil() {
				return reflect.Value{}
			}
		}
	}
	return v
}

// enumValue gets the name of an enum value from a string (or a type with a String method)
func enumValue(rv reflect.Value) (string, bool) {
	if s, ok := rv.Interface().(fmt.Stringer); ok {
		return s.String(), true
	}
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

// serializeScalar converts a Go value to the JSON value for a built-in GraphQL scalar type.
// Custom scalars are passed through unchanged (so they are encoded using any MarshalJSON method).
func serializeScalar(typeName string, rv reflect.Value) (interface{}, error) {
	switch typeName {
	case "String", "ID":
		switch rv.Kind() {
		case reflect.String:
			return rv.String(), nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if typeName == "ID" {
				return fmt.Sprint(rv.Int()), nil
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if typeName == "ID" {
				return fmt.Sprint(rv.Uint()), nil
			}
		}
		if s, ok := rv.Interface().(fmt.Stringer); ok {
			return s.String(), nil
		}

	case "Int":
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if i := rv.Int(); i >= math.MinInt32 && i <= math.MaxInt32 {
				return i, nil
			}
			return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %d", rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if u := rv.Uint(); u <= math.MaxInt32 {
				return int64(u), nil
			}
			return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %d", rv.Uint())
		}

	case "Float":
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			return rv.Float(), nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return float64(rv.Int()), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return float64(rv.Uint()), nil
		}

	case "Boolean":
		if rv.Kind() == reflect.Bool {
			return rv.Bool(), nil
		}

	default:
		return rv.Interface(), nil
	}
	return nil, fmt.Errorf("%s cannot represent value: %v", typeName, rv.Interface())
}
