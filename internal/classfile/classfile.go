// Package classfile decodes the structural facts of a single JVM classfile:
// its qualified name, kind, direct supertypes, declared annotations, and the
// compile-time constant values of requested static final fields. It reads the
// binary layout directly and never interprets method bodies.
package classfile

import (
	"fmt"
	"strings"
)

// ClassRecord is the flat result of decoding one classfile. All type names
// are fully qualified and dot-separated (e.g. "com.example.Widget").
type ClassRecord struct {
	Name string

	// Superclass is the direct superclass, or empty for interfaces,
	// annotations and the root class.
	Superclass string

	IsInterface  bool
	IsAnnotation bool

	// Interfaces lists the directly implemented (for classes) or directly
	// extended (for interfaces) interface names, in declaration order.
	Interfaces []string

	// Annotations lists the type names of annotations declared directly on
	// the class, from both the visible and invisible annotation attributes.
	Annotations []string

	// Constants holds the resolved values of requested static final fields.
	Constants []FieldConstant
}

// ConstKind tags the literal type of a field constant.
type ConstKind string

const (
	ConstInt    ConstKind = "int"
	ConstLong   ConstKind = "long"
	ConstFloat  ConstKind = "float"
	ConstDouble ConstKind = "double"
	ConstBool   ConstKind = "boolean"
	ConstChar   ConstKind = "char"
	ConstString ConstKind = "string"
)

// FieldConstant is the literal value of one static final field. Value holds
// int32 (int and char), int64, float32, float64, bool or string according to
// Kind.
type FieldConstant struct {
	Class string    `json:"class"`
	Field string    `json:"field"`
	Kind  ConstKind `json:"kind"`
	Value any       `json:"value"`
}

// QualifiedField returns the fully qualified field name, e.g.
// "com.example.Widget.VERSION".
func (c FieldConstant) QualifiedField() string {
	return c.Class + "." + c.Field
}

// ConstantRequests indexes requested static final field names by declaring
// class, so the decoder can look up the relevant set once it knows which
// class it is reading.
type ConstantRequests map[string]map[string]bool

// NewConstantRequests parses fully qualified field names of the form
// "com.example.Widget.VERSION" (the field name follows the last dot).
func NewConstantRequests(qualified []string) (ConstantRequests, error) {
	req := make(ConstantRequests)
	for _, q := range qualified {
		i := strings.LastIndex(q, ".")
		if i <= 0 || i == len(q)-1 {
			return nil, fmt.Errorf("constant field %q: want a fully qualified ClassName.fieldName", q)
		}
		class, field := q[:i], q[i+1:]
		if req[class] == nil {
			req[class] = make(map[string]bool)
		}
		req[class][field] = true
	}
	return req, nil
}

// DecodeError reports a malformed or truncated classfile. It is scoped to a
// single classpath entry: the entry is dropped and the scan continues.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
