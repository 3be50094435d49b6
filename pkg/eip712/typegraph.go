package eip712

import (
	"reflect"
	"sort"
	"strings"
)

// member is one "type name" pair of an encoded struct type.
type member struct {
	typeName string
	name     string
}

// encodedType is the schema record of one struct type. id is the Go type
// behind the value, pointers stripped, and only serves as an identity marker
// for name uniqueness.
type encodedType struct {
	id      reflect.Type
	name    string
	members []member
}

func (t *encodedType) writeTo(sb *strings.Builder) {
	sb.WriteString(t.name)
	sb.WriteByte('(')
	for i, m := range t.members {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(m.typeName)
		sb.WriteByte(' ')
		sb.WriteString(m.name)
	}
	sb.WriteByte(')')
}

// typeGraphBuilder collects the root struct type and every struct type
// reachable from it. It lives for a single EncodeType call.
//
// The root is kept apart from the referenced types because the canonical
// string emits it first and sorts only the others.
type typeGraphBuilder struct {
	outer *encodedType
	inner map[string]*encodedType
	err   error
}

func newTypeGraphBuilder() *typeGraphBuilder {
	return &typeGraphBuilder{inner: make(map[string]*encodedType)}
}

func (b *typeGraphBuilder) lookup(name string) *encodedType {
	if b.outer != nil && b.outer.name == name {
		return b.outer
	}
	return b.inner[name]
}

// addStruct records s and walks its members. The record is inserted before
// the walk so that a struct referring back to itself, directly or through
// other structs, finds it and stops.
func (b *typeGraphBuilder) addStruct(s StructType) {
	if b.err != nil {
		return
	}
	name := s.TypeName()
	if b.lookup(name) != nil {
		b.err = schemaErrorf("type %q registered twice", name)
		return
	}
	record := &encodedType{id: typeIdentity(s), name: name}
	if b.outer == nil {
		b.outer = record
	} else {
		b.inner[name] = record
	}
	s.VisitMembers(&memberCollector{builder: b, owner: record})
}

// render writes the root block followed by the referenced blocks in
// ascending byte order of their names.
func (b *typeGraphBuilder) render() string {
	var sb strings.Builder
	b.outer.writeTo(&sb)
	names := make([]string, 0, len(b.inner))
	for name := range b.inner {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.inner[name].writeTo(&sb)
	}
	return sb.String()
}

// memberCollector is the MemberVisitor handed to a struct while its schema
// is being recorded.
type memberCollector struct {
	builder *typeGraphBuilder
	owner   *encodedType
}

func (c *memberCollector) Visit(name string, value MemberType) {
	b := c.builder
	if b.err != nil {
		return
	}
	if value == nil {
		b.err = schemaErrorf("member %s.%s has no value", c.owner.name, name)
		return
	}
	typeName := value.TypeName()
	c.owner.members = append(c.owner.members, member{typeName: typeName, name: name})

	if existing := b.lookup(typeName); existing != nil {
		if id := typeIdentity(value); existing.id != id {
			b.err = schemaErrorf("duplicate type name %q: %s and %s", typeName, existing.id, id)
		}
		return
	}

	switch v := value.(type) {
	case AtomicType, DynamicType:
	case StructType:
		b.addStruct(v)
	default:
		b.err = schemaErrorf("member %s.%s has unsupported type %T", c.owner.name, name, value)
	}
}

// typeIdentity treats T and *T as the same type, so a struct may be visited
// through either receiver.
func typeIdentity(v MemberType) reflect.Type {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func encodeType(s StructType) (string, error) {
	if s == nil {
		return "", schemaErrorf("nil struct value")
	}
	b := newTypeGraphBuilder()
	b.addStruct(s)
	if b.err != nil {
		return "", b.err
	}
	return b.render(), nil
}
