package handler

// resolve.go finds and calls the resolver for a field: a registered ResolverFunc or else the default resolver
// which gets the value from the parent (struct field, map element or func field)

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/andrewwphillips/bookql/internal/field"
)

type (
	// ResolverFunc returns the value of a field given the value of the parent object (nil for root
	// query fields) and the field's arguments (with defaults and variables already applied)
	ResolverFunc func(ctx context.Context, parent interface{}, args map[string]interface{}) (interface{}, error)

	// Resolvers maps a GraphQL object type name to the resolvers of its fields (keyed by field name).
	// A field with no resolver gets its value from the parent object using the same name:
	//   - a map element (map key must be a string)
	//   - a struct field (Go name with 1st letter lower-cased, or the name in a "graphql" tag)
	//   - the return value of a func field (see field.Get for the supported signatures)
	Resolvers map[string]map[string]ResolverFunc

	// fieldLookup caches the GraphQL field info of the struct types used with the default resolver
	fieldLookup struct {
		mu     sync.RWMutex
		tables map[reflect.Type]map[string]*field.Info
	}
)

func newFieldLookup() *fieldLookup {
	return &fieldLookup{tables: make(map[reflect.Type]map[string]*field.Info)}
}

// resolve calls the resolver registered for a field or else uses the default resolver
func (op *gqlOperation) resolve(ctx context.Context, typeName, fieldName string, parent interface{}, args map[string]interface{}) (interface{}, error) {
	if fn := op.resolvers[typeName][fieldName]; fn != nil {
		return fn(ctx, parent, args)
	}
	return op.lookup.resolve(ctx, parent, fieldName, args)
}

// resolve is the default resolver which gets the value of the field "name" from the parent value
func (l *fieldLookup) resolve(ctx context.Context, parent interface{}, name string, args map[string]interface{}) (interface{}, error) {
	v := indirect(reflect.ValueOf(parent))
	if !v.IsValid() {
		return nil, nil
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("cannot resolve field %q from map with key type %s", name, v.Type().Key())
		}
		elem := v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key()))
		if !elem.IsValid() {
			return nil, nil
		}
		if fn, ok := elem.Interface().(ResolverFunc); ok {
			return fn(ctx, parent, args)
		}
		return elem.Interface(), nil

	case reflect.Struct:
		table, err := l.table(v.Type())
		if err != nil {
			return nil, err
		}
		info, ok := table[name]
		if !ok {
			return nil, nil // like a missing property - resolves to null
		}
		fv, err := v.FieldByIndexErr(info.Index)
		if err != nil {
			return nil, nil // promoted through a nil embedded pointer
		}
		if !info.Func {
			return fv.Interface(), nil
		}
		return call(ctx, fv, info, parent, args)
	}
	return nil, fmt.Errorf("cannot resolve field %q from value of type %s", name, v.Type())
}

// table returns the GraphQL field info for a struct type, building it the first time the type is seen
func (l *fieldLookup) table(t reflect.Type) (map[string]*field.Info, error) {
	l.mu.RLock()
	table, ok := l.tables[t]
	l.mu.RUnlock()
	if ok {
		return table, nil
	}

	table, err := field.Map(t)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.tables[t] = table
	l.mu.Unlock()
	return table, nil
}

// call invokes a func field passing the parameters it asks for
func call(ctx context.Context, fv reflect.Value, info *field.Info, parent interface{}, args map[string]interface{}) (interface{}, error) {
	if fv.IsNil() {
		return nil, nil
	}
	in := make([]reflect.Value, len(info.Params))
	for i, p := range info.Params {
		switch p {
		case field.ParamContext:
			in[i] = reflect.ValueOf(&ctx).Elem()
		case field.ParamArgs:
			in[i] = reflect.ValueOf(args)
		case field.ParamParent:
			in[i] = reflect.ValueOf(&parent).Elem()
		}
	}
	out := fv.Call(in)
	if info.HasErr && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}
