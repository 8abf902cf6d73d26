// Package field is for analysing Go struct fields for use as GraphQL object fields
package field

// field.go maps the fields of Go structs to GraphQL field names and checks func fields can be called as resolvers

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Info is returned by Get() with info extracted from a struct field to be used to resolve a GraphQL field.
// The info is obtained from the field's name, type and "graphql" (metadata) tag.
type Info struct {
	Name  string // field name for use in GraphQL queries - from the tag or the Go struct field name
	Index []int  // index sequence for reflect.Value.FieldByIndex (more than one element for promoted fields)

	// The following are for function fields only
	Func   bool    // the field is a func which is called to get the value
	Params []Param // what to pass for each func parameter
	HasErr bool    // has 2 return values the 2nd of which is a Go error
}

// Param says what is passed to a func field for one of its parameters
type Param int

const (
	ParamContext Param = iota // context.Context of the request
	ParamArgs                 // map[string]interface{} of GraphQL field arguments
	ParamParent               // interface{} = the struct containing the field
)

var (
	// contextType is used to check if a parameter is a context.Context
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	// errorType is used to check if a function returns a (2nd) error return value
	errorType = reflect.TypeOf((*error)(nil)).Elem()
	argsType  = reflect.TypeOf(map[string]interface{}(nil))
	anyType   = reflect.TypeOf((*interface{})(nil)).Elem()
)

// Get checks if a field in a Go struct is exported and, if so, returns the GraphQL field info. incl. the
// GQL field name, derived from the Go field name (with 1st char lower-cased) or taken from the tag.
// If the field is not exported or the tag name is a dash (-) then nil is returned, but no error.
// An error is returned for a func field that can't be called as a resolver.
func Get(f *reflect.StructField) (*Info, error) {
	if f.PkgPath != "" || f.Name == "_" {
		return nil, nil // unexported field
	}
	name := strings.TrimSpace(strings.SplitN(f.Tag.Get("graphql"), ",", 2)[0])
	if name == "-" {
		return nil, nil // explicitly omitted field
	}
	if name == "" {
		// make GraphQL name from Go field name with lower-case first letter
		first, n := utf8.DecodeRuneInString(f.Name)
		name = string(unicode.ToLower(first)) + f.Name[n:]
	}
	info := &Info{Name: name, Index: f.Index}

	if f.Type.Kind() != reflect.Func {
		return info, nil
	}
	info.Func = true
	t := f.Type
	for i := 0; i < t.NumIn(); i++ {
		switch in := t.In(i); {
		case in == contextType:
			info.Params = append(info.Params, ParamContext)
		case in == argsType:
			info.Params = append(info.Params, ParamArgs)
		case in == anyType:
			info.Params = append(info.Params, ParamParent)
		default:
			return nil, fmt.Errorf("resolver %q parameter %d has unsupported type %s", f.Name, i+1, in)
		}
	}

	// Validate the resolver function return type(s)
	switch t.NumOut() {
	case 0:
		return nil, errors.New("resolver " + f.Name + " must return a value (or 2)")
	case 1:
		// nothing here
	case 2:
		if t.Out(1) != errorType {
			return nil, errors.New("resolver " + f.Name + " 2nd return must be error type")
		}
		info.HasErr = true
	default:
		return nil, errors.New("resolver " + f.Name + " returns too many values")
	}
	return info, nil
}

// Map returns info on all the GraphQL fields of a struct type keyed by GraphQL name.
// Fields of embedded structs are promoted unless a field of the same name is found at a shallower depth.
func Map(t reflect.Type) (map[string]*Info, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type %s is not a struct", t)
	}
	r := make(map[string]*Info, t.NumField())
	var embedded []reflect.StructField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Tag.Get("graphql") == "" {
			embedded = append(embedded, f)
			continue
		}
		info, err := Get(&f)
		if err != nil {
			return nil, fmt.Errorf("%w in struct %s", err, t)
		}
		if info != nil {
			r[info.Name] = info
		}
	}

	for _, e := range embedded {
		inner, err := Map(e.Type)
		if err != nil {
			return nil, err
		}
		for name, info := range inner {
			if _, ok := r[name]; ok {
				continue // shadowed by a field of the outer struct
			}
			promoted := *info
			promoted.Index = append(append([]int{}, e.Index...), info.Index...)
			r[name] = &promoted
		}
	}
	return r, nil
}
