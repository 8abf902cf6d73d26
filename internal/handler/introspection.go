package handler

// introspection.go implements the introspection type which handles the GraphQL __schema and __type queries.
// The introspection data is built from the schema and resolved using the default resolver, so the struct
// field names (or graphql tags) must match the fields of the introspection types (__Schema, __Type, etc).

import (
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
)

type (
	introspection struct {
		astSchema *ast.Schema

		Schema *gqlSchema                                 `graphql:"__schema"`
		Type   func(args map[string]interface{}) *gqlType `graphql:"__type"`
	}

	gqlSchema struct {
		Description      *string
		Types            func() []*gqlType
		QueryType        *gqlType
		MutationType     *gqlType
		SubscriptionType *gqlType
		Directives       func() []gqlDirective
	}

	// gqlType is a named type (with Name set) or a wrapping type (LIST or NON_NULL with OfType set).
	// The lists are funcs as types can refer to themselves (directly or indirectly).
	gqlType struct {
		Kind           string
		Name           *string
		Description    *string
		SpecifiedByURL *string
		Fields         func(args map[string]interface{}) []gqlField
		Interfaces     func() []*gqlType
		PossibleTypes  func() []*gqlType
		EnumValues     func(args map[string]interface{}) []gqlEnumValue
		InputFields    func() []gqlInputValue
		OfType         *gqlType
	}

	gqlField struct {
		Name              string
		Description       *string
		Args              []gqlInputValue
		Type              *gqlType
		IsDeprecated      bool
		DeprecationReason *string
	}

	gqlInputValue struct {
		Name              string
		Description       *string
		Type              *gqlType
		DefaultValue      *string
		IsDeprecated      bool
		DeprecationReason *string
	}

	gqlEnumValue struct {
		Name              string
		Description       *string
		IsDeprecated      bool
		DeprecationReason *string
	}

	gqlDirective struct {
		Name         string
		Description  *string
		Locations    []string
		Args         []gqlInputValue
		IsRepeatable bool
	}
)

// newIntrospection creates the "resolver" for the __schema and __type fields of the root query
func newIntrospection(astSchema *ast.Schema) *introspection {
	i := &introspection{astSchema: astSchema}
	i.Schema = &gqlSchema{
		Types:            i.types,
		QueryType:        i.named(astSchema.Query),
		MutationType:     i.named(astSchema.Mutation),
		SubscriptionType: i.named(astSchema.Subscription),
		Directives:       i.directives,
	}
	i.Type = func(args map[string]interface{}) *gqlType {
		name, _ := args["name"].(string)
		return i.named(astSchema.Types[name])
	}
	return i
}

// types returns all the named types of the schema sorted by name
func (i *introspection) types() []*gqlType {
	names := make([]string, 0, len(i.astSchema.Types))
	for name := range i.astSchema.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	r := make([]*gqlType, 0, len(names))
	for _, name := range names {
		r = append(r, i.named(i.astSchema.Types[name]))
	}
	return r
}

func (i *introspection) directives() []gqlDirective {
	names := make([]string, 0, len(i.astSchema.Directives))
	for name := range i.astSchema.Directives {
		names = append(names, name)
	}
	sort.Strings(names)
	r := make([]gqlDirective, 0, len(names))
	for _, name := range names {
		d := i.astSchema.Directives[name]
		locations := make([]string, 0, len(d.Locations))
		for _, loc := range d.Locations {
			locations = append(locations, string(loc))
		}
		r = append(r, gqlDirective{
			Name:         d.Name,
			Description:  optional(d.Description),
			Locations:    locations,
			Args:         i.args(d.Arguments),
			IsRepeatable: d.IsRepeatable,
		})
	}
	return r
}

// named returns the introspection type for a schema definition (or nil if defn is nil)
func (i *introspection) named(defn *ast.Definition) *gqlType {
	if defn == nil {
		return nil
	}
	name := defn.Name
	r := &gqlType{
		Kind:        string(defn.Kind),
		Name:        &name,
		Description: optional(defn.Description),
	}
	switch defn.Kind {
	case ast.Scalar:
		if d := defn.Directives.ForName("specifiedBy"); d != nil {
			if url := d.Arguments.ForName("url"); url != nil && url.Value != nil {
				r.SpecifiedByURL = optional(url.Value.Raw)
			}
		}
	case ast.Object, ast.Interface:
		r.Fields = func(args map[string]interface{}) []gqlField {
			return i.fields(defn.Fields, includeDeprecated(args))
		}
		r.Interfaces = func() []*gqlType {
			list := make([]*gqlType, 0, len(defn.Interfaces))
			for _, name := range defn.Interfaces {
				list = append(list, i.named(i.astSchema.Types[name]))
			}
			return list
		}
		if defn.Kind == ast.Interface {
			r.PossibleTypes = i.possibleTypes(defn)
		}
	case ast.Union:
		r.PossibleTypes = i.possibleTypes(defn)
	case ast.Enum:
		r.EnumValues = func(args map[string]interface{}) []gqlEnumValue {
			list := make([]gqlEnumValue, 0, len(defn.EnumValues))
			for _, v := range defn.EnumValues {
				reason := deprecation(v.Directives)
				if reason != nil && !includeDeprecated(args) {
					continue
				}
				list = append(list, gqlEnumValue{
					Name:              v.Name,
					Description:       optional(v.Description),
					IsDeprecated:      reason != nil,
					DeprecationReason: reason,
				})
			}
			return list
		}
	case ast.InputObject:
		r.InputFields = func() []gqlInputValue {
			list := make([]gqlInputValue, 0, len(defn.Fields))
			for _, f := range defn.Fields {
				list = append(list, i.inputValue(f.Name, f.Description, f.Type, f.DefaultValue, f.Directives))
			}
			return list
		}
	}
	return r
}

func (i *introspection) possibleTypes(defn *ast.Definition) func() []*gqlType {
	return func() []*gqlType {
		possible := i.astSchema.GetPossibleTypes(defn)
		list := make([]*gqlType, 0, len(possible))
		for _, p := range possible {
			list = append(list, i.named(p))
		}
		return list
	}
}

// typeRef returns the introspection type for a field/argument type, wrapping it in NON_NULL and LIST as required
func (i *introspection) typeRef(t *ast.Type) *gqlType {
	if t.NonNull {
		inner := *t
		inner.NonNull = false
		return &gqlType{Kind: "NON_NULL", OfType: i.typeRef(&inner)}
	}
	if t.Elem != nil {
		return &gqlType{Kind: "LIST", OfType: i.typeRef(t.Elem)}
	}
	return i.named(i.astSchema.Types[t.NamedType])
}

func (i *introspection) fields(fields ast.FieldList, withDeprecated bool) []gqlField {
	r := make([]gqlField, 0, len(fields))
	for _, f := range fields {
		if strings.HasPrefix(f.Name, "__") {
			continue // __schema and __type are added to the root query but are not listed
		}
		reason := deprecation(f.Directives)
		if reason != nil && !withDeprecated {
			continue
		}
		r = append(r, gqlField{
			Name:              f.Name,
			Description:       optional(f.Description),
			Args:              i.args(f.Arguments),
			Type:              i.typeRef(f.Type),
			IsDeprecated:      reason != nil,
			DeprecationReason: reason,
		})
	}
	return r
}

func (i *introspection) args(arguments ast.ArgumentDefinitionList) []gqlInputValue {
	r := make([]gqlInputValue, 0, len(arguments))
	for _, arg := range arguments {
		r = append(r, i.inputValue(arg.Name, arg.Description, arg.Type, arg.DefaultValue, arg.Directives))
	}
	return r
}

func (i *introspection) inputValue(name, desc string, t *ast.Type, defaultValue *ast.Value, directives ast.DirectiveList) gqlInputValue {
	r := gqlInputValue{
		Name:        name,
		Description: optional(desc),
		Type:        i.typeRef(t),
	}
	if defaultValue != nil {
		r.DefaultValue = optional(defaultValue.String())
	}
	if reason := deprecation(directives); reason != nil {
		r.IsDeprecated = true
		r.DeprecationReason = reason
	}
	return r
}

// deprecation returns the reason if there is a @deprecated directive, else nil
func deprecation(directives ast.DirectiveList) *string {
	d := directives.ForName("deprecated")
	if d == nil {
		return nil
	}
	reason := "No longer supported"
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		reason = arg.Value.Raw
	}
	return &reason
}

func includeDeprecated(args map[string]interface{}) bool {
	b, _ := args["includeDeprecated"].(bool)
	return b
}

// optional returns nil for an empty string so that it is returned as null
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
