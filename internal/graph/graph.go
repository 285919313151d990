// Package graph assembles decoded classfile records into a type-relationship
// graph and computes the frozen query snapshots served after each scan.
//
// Nodes live in a single registry keyed by qualified name and reference each
// other by name, never by owning pointers, so the cyclic annotation subgraph
// needs no special handling. A node cited as an ancestor before its own
// record arrives starts as an unresolved placeholder and is promoted in
// place, which keeps construction order-independent.
package graph

import (
	"fmt"
	"sort"

	"github.com/classlens/classlens/internal/classfile"
)

// Kind classifies a node. Annotations are a specialization of interfaces.
type Kind int

const (
	KindClass Kind = iota
	KindInterface
	KindAnnotation
)

func (k Kind) String() string {
	switch k {
	case KindInterface:
		return "interface"
	case KindAnnotation:
		return "annotation"
	default:
		return "class"
	}
}

// KindFromString is the inverse of Kind.String.
func KindFromString(s string) (Kind, error) {
	switch s {
	case "class":
		return KindClass, nil
	case "interface":
		return KindInterface, nil
	case "annotation":
		return KindAnnotation, nil
	}
	return KindClass, fmt.Errorf("unknown node kind %q", s)
}

// Node is one registry entry. A node exists for every qualified name
// encountered anywhere: as a decoded definition (Resolved) or as a
// placeholder created because another record cited it as an ancestor.
// Placeholders may stay unresolved forever, e.g. system supertypes that are
// never on the scanned classpath.
type Node struct {
	Name     string
	Kind     Kind
	Resolved bool

	// Structural facts from the node's own record, set on promotion.
	// Superclass is empty for interfaces and the root class. Interfaces is
	// kept separate from the merged edge set so "implements" and "extends
	// class" stay distinguishable during closure computation.
	Superclass  string
	Interfaces  []string
	Annotations []string

	// Supertypes merges all supertype edges (class, interface and
	// annotation); Subtypes is its symmetric reverse. Both directions are
	// maintained on every insert.
	Supertypes map[string]bool
	Subtypes   map[string]bool
}

// StructuralConflict reports two records disagreeing about a class's direct
// superclass. It is fatal to the scan pass: the graph can no longer be
// trusted, so no result is published.
type StructuralConflict struct {
	Name        string
	Existing    string
	Conflicting string
}

func (e *StructuralConflict) Error() string {
	return fmt.Sprintf("class %s has two superclasses: %s, %s", e.Name, e.Existing, e.Conflicting)
}

// Graph is the mutable registry built during a scan pass. Merging is
// single-writer: decode may be parallel, but records must be folded in
// sequentially (and in classpath order, so that first-seen wins).
type Graph struct {
	nodes map[string]*Node
}

func New() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// Node returns the registry entry for name, or nil if the name was never
// encountered.
func (g *Graph) Node(name string) *Node {
	return g.nodes[name]
}

// Names returns all registered names, resolved and placeholder, sorted.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len reports the number of registered nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// node looks up or creates the entry for name. New entries start as
// unresolved placeholders.
func (g *Graph) node(name string) *Node {
	if n, ok := g.nodes[name]; ok {
		return n
	}
	n := &Node{
		Name:       name,
		Supertypes: make(map[string]bool),
		Subtypes:   make(map[string]bool),
	}
	g.nodes[name] = n
	return n
}

// Merge folds one decoded record into the graph and reports whether the
// record became the node's definition. A record for an already-resolved name
// is a duplicate definition found later on the classpath: it is discarded
// (first seen wins), after checking that it does not claim a different
// superclass, which would be a StructuralConflict.
func (g *Graph) Merge(rec *classfile.ClassRecord) (bool, error) {
	n := g.node(rec.Name)
	kind := recordKind(rec)

	if n.Resolved {
		if n.Kind == KindClass && kind == KindClass && n.Superclass != rec.Superclass {
			return false, &StructuralConflict{Name: rec.Name, Existing: n.Superclass, Conflicting: rec.Superclass}
		}
		return false, nil
	}

	n.Resolved = true
	n.Kind = kind
	n.Superclass = rec.Superclass
	n.Interfaces = append([]string(nil), rec.Interfaces...)
	n.Annotations = append([]string(nil), rec.Annotations...)

	if rec.Superclass != "" {
		g.link(n, rec.Superclass)
	}
	for _, iname := range rec.Interfaces {
		g.link(n, iname)
	}
	for _, aname := range rec.Annotations {
		g.link(n, aname)
	}
	return true, nil
}

// link records the bidirectional sub → super edge, creating a placeholder
// for the supertype if it has not been seen yet.
func (g *Graph) link(sub *Node, super string) {
	sp := g.node(super)
	sub.Supertypes[sp.Name] = true
	sp.Subtypes[sub.Name] = true
}

func recordKind(rec *classfile.ClassRecord) Kind {
	switch {
	case rec.IsAnnotation:
		return KindAnnotation
	case rec.IsInterface:
		return KindInterface
	default:
		return KindClass
	}
}
