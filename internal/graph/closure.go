package graph

import (
	"sort"

	"github.com/classlens/classlens/internal/classfile"
)

// ScanResult is the frozen query snapshot computed once after every record
// of a scan pass has been merged. It is immutable for its whole lifetime; a
// later scan builds a fresh one and swaps it in atomically, so concurrent
// readers never observe a half-built graph.
//
// Scope gating applies to every node on a transitive path: a resolved node
// that fails the scope rules silently breaks the chain. Unresolved
// placeholders are reported as leaf ancestors unless explicitly excluded;
// they carry no outgoing edges, so they never extend a chain.
type ScanResult struct {
	nodes map[string]*Node
	scope *Scope

	classAncestors   map[string]map[string]bool
	classDescendants map[string]map[string]bool
	ifaceSupers      map[string]map[string]bool
	ifaceSubs        map[string]map[string]bool
	implementers     map[string]map[string]bool
	annotated        map[string]map[string]bool // target annotation -> names reaching it
	metaAnnotations  map[string]map[string]bool // annotation -> forward reachability
	constants        []classfile.FieldConstant
}

// Compute builds the query snapshot for a completed merge pass. The graph
// must not be mutated afterwards; the snapshot reads it directly.
func Compute(g *Graph, scope *Scope, constants []classfile.FieldConstant) *ScanResult {
	r := &ScanResult{
		nodes:            g.nodes,
		scope:            scope,
		classAncestors:   make(map[string]map[string]bool),
		classDescendants: make(map[string]map[string]bool),
		ifaceSupers:      make(map[string]map[string]bool),
		ifaceSubs:        make(map[string]map[string]bool),
		implementers:     make(map[string]map[string]bool),
		annotated:        make(map[string]map[string]bool),
		metaAnnotations:  make(map[string]map[string]bool),
		constants:        constants,
	}
	r.computeClassClosures()
	r.computeInterfaceClosures()
	r.computeImplementers()
	r.computeAnnotationClosures()
	return r
}

// usable reports whether name may appear in a query answer: resolved nodes
// must pass the full scope rules, placeholders only the exclusions.
func (r *ScanResult) usable(name string) bool {
	n := r.nodes[name]
	if n == nil {
		return false
	}
	if n.Resolved {
		return r.scope.InScope(name)
	}
	return !r.scope.Excluded(name)
}

// traversable reports whether a path may continue through name.
func (r *ScanResult) traversable(name string) bool {
	n := r.nodes[name]
	return n != nil && n.Resolved && r.scope.InScope(name)
}

// visible reports whether node n is a resolved, in-scope definition; only
// such nodes get closure entries of their own.
func (r *ScanResult) visible(n *Node) bool {
	return n.Resolved && r.scope.InScope(n.Name)
}

// computeClassClosures walks each class's single-parent superclass chain and
// then inverts the result, which makes descendants(C) and ancestors(D)
// symmetric by construction.
func (r *ScanResult) computeClassClosures() {
	for name, n := range r.nodes {
		if !r.visible(n) || n.Kind != KindClass {
			continue
		}
		set := make(map[string]bool)
		cur := n.Superclass
		for cur != "" && !set[cur] {
			if !r.usable(cur) {
				break
			}
			set[cur] = true
			next := r.nodes[cur]
			if !next.Resolved {
				break
			}
			cur = next.Superclass
		}
		r.classAncestors[name] = set
	}
	for name, ancestors := range r.classAncestors {
		for a := range ancestors {
			if r.classDescendants[a] == nil {
				r.classDescendants[a] = make(map[string]bool)
			}
			r.classDescendants[a][name] = true
		}
	}
}

// addInterfaceClosure adds every interface reachable from name over
// interface-extension edges, name itself included. The visited set doubles
// as the result, so shared ancestors are walked once and a malformed cycle
// terminates.
func (r *ScanResult) addInterfaceClosure(name string, set map[string]bool) {
	if set[name] || !r.usable(name) {
		return
	}
	set[name] = true
	if !r.traversable(name) {
		return
	}
	for _, super := range r.nodes[name].Interfaces {
		r.addInterfaceClosure(super, set)
	}
}

func (r *ScanResult) computeInterfaceClosures() {
	for name, n := range r.nodes {
		if !r.visible(n) || n.Kind == KindClass {
			continue
		}
		set := make(map[string]bool)
		for _, super := range n.Interfaces {
			r.addInterfaceClosure(super, set)
		}
		r.ifaceSupers[name] = set
	}
	for name, supers := range r.ifaceSupers {
		for s := range supers {
			if r.ifaceSubs[s] == nil {
				r.ifaceSubs[s] = make(map[string]bool)
			}
			r.ifaceSubs[s][name] = true
		}
	}
}

// computeImplementers records, for every interface I, each class whose own
// or inherited interface declarations reach I. Class descendants pick up
// their ancestors' interfaces through their own ancestor sets.
func (r *ScanResult) computeImplementers() {
	for name, n := range r.nodes {
		if !r.visible(n) || n.Kind != KindClass {
			continue
		}
		ifaces := make(map[string]bool)
		for _, iname := range n.Interfaces {
			r.addInterfaceClosure(iname, ifaces)
		}
		for a := range r.classAncestors[name] {
			anc := r.nodes[a]
			if anc == nil || !anc.Resolved {
				continue
			}
			for _, iname := range anc.Interfaces {
				r.addInterfaceClosure(iname, ifaces)
			}
		}
		for iname := range ifaces {
			if r.implementers[iname] == nil {
				r.implementers[iname] = make(map[string]bool)
			}
			r.implementers[iname][name] = true
		}
	}
}

// computeAnnotationClosures builds, for every annotation target, the set of
// names from which a directed annotated-with path reaches it. The annotation
// subgraph may be cyclic, so each walk keeps a per-query visited set: a
// cycle terminates the walk without losing nodes discovered through it.
func (r *ScanResult) computeAnnotationClosures() {
	// Reverse edges: annotation -> the in-scope nodes that declare it.
	reverse := make(map[string][]string)
	for name, n := range r.nodes {
		if !r.visible(n) {
			continue
		}
		for _, aname := range n.Annotations {
			if r.usable(aname) {
				reverse[aname] = append(reverse[aname], name)
			}
		}
	}

	targets := make(map[string]bool)
	for aname := range reverse {
		targets[aname] = true
	}
	for name, n := range r.nodes {
		if r.visible(n) && n.Kind == KindAnnotation {
			targets[name] = true
		}
	}

	for target := range targets {
		reach := make(map[string]bool)
		visited := map[string]bool{target: true}
		stack := []string{target}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, src := range reverse[cur] {
				if visited[src] {
					continue
				}
				visited[src] = true
				reach[src] = true
				stack = append(stack, src)
			}
		}
		r.annotated[target] = reach
	}

	// Forward reachability for meta-annotation listings.
	for name, n := range r.nodes {
		if !r.visible(n) || n.Kind != KindAnnotation {
			continue
		}
		// The walk only adds the source itself when a cycle leads back
		// to it, which is exactly the desired reachability semantics.
		set := make(map[string]bool)
		r.addAnnotationClosure(name, set, map[string]bool{})
		r.metaAnnotations[name] = set
	}
}

func (r *ScanResult) addAnnotationClosure(name string, set, walked map[string]bool) {
	if walked[name] {
		return
	}
	walked[name] = true
	n := r.nodes[name]
	if n == nil || !n.Resolved {
		return
	}
	for _, aname := range n.Annotations {
		if !r.usable(aname) {
			continue
		}
		set[aname] = true
		if r.traversable(aname) {
			r.addAnnotationClosure(aname, set, walked)
		}
	}
}

// --- query surface ---

// SubclassesOf returns every class transitively below name on class edges.
func (r *ScanResult) SubclassesOf(name string) []string {
	return sorted(r.classDescendants[name])
}

// SuperclassesOf returns every class transitively above name, including
// unresolved external supertypes as leaf ancestors.
func (r *ScanResult) SuperclassesOf(name string) []string {
	return sorted(r.classAncestors[name])
}

// SubinterfacesOf returns every interface transitively extending name.
func (r *ScanResult) SubinterfacesOf(name string) []string {
	return sorted(r.ifaceSubs[name])
}

// SuperinterfacesOf returns every interface transitively extended by name.
func (r *ScanResult) SuperinterfacesOf(name string) []string {
	return sorted(r.ifaceSupers[name])
}

// Implementing returns every class that implements the interface, directly,
// through a superinterface, or through a class ancestor.
func (r *ScanResult) Implementing(name string) []string {
	return sorted(r.implementers[name])
}

// ImplementingAllOf intersects the implementer sets of the given interfaces.
func (r *ScanResult) ImplementingAllOf(names ...string) []string {
	return r.combineAll(r.implementers, names)
}

// ImplementingAnyOf unions the implementer sets of the given interfaces.
func (r *ScanResult) ImplementingAnyOf(names ...string) []string {
	return r.combineAny(r.implementers, names)
}

// WithAnnotation returns every class from which the annotation is reachable
// over annotated-with edges, meta-annotations included.
func (r *ScanResult) WithAnnotation(name string) []string {
	return sorted(r.filterKind(r.annotated[name], KindClass))
}

// WithAnnotationAllOf intersects the annotated sets, classes only.
func (r *ScanResult) WithAnnotationAllOf(names ...string) []string {
	return r.filterSorted(r.combineAllSet(r.annotated, names), KindClass)
}

// WithAnnotationAnyOf unions the annotated sets, classes only.
func (r *ScanResult) WithAnnotationAnyOf(names ...string) []string {
	return r.filterSorted(r.combineAnySet(r.annotated, names), KindClass)
}

// AnnotationsWithMetaAnnotation returns every annotation from which the
// meta-annotation is reachable, cycles included.
func (r *ScanResult) AnnotationsWithMetaAnnotation(name string) []string {
	return sorted(r.filterKind(r.annotated[name], KindAnnotation))
}

// AnnotationsOnClass returns the annotations declared directly on name.
func (r *ScanResult) AnnotationsOnClass(name string) []string {
	n := r.nodes[name]
	if n == nil || !r.visible(n) {
		return nil
	}
	set := make(map[string]bool)
	for _, aname := range n.Annotations {
		if r.usable(aname) {
			set[aname] = true
		}
	}
	return sorted(set)
}

// MetaAnnotationsOnAnnotation returns every annotation transitively
// reachable from name over annotated-with edges.
func (r *ScanResult) MetaAnnotationsOnAnnotation(name string) []string {
	return sorted(r.metaAnnotations[name])
}

// AllTypes returns every in-scope resolved name plus any unresolved
// supertype cited by one of them, such as the universal root class.
func (r *ScanResult) AllTypes() []string {
	set := make(map[string]bool)
	for name, n := range r.nodes {
		if !r.visible(n) {
			continue
		}
		set[name] = true
		for super := range n.Supertypes {
			if sn := r.nodes[super]; sn != nil && !sn.Resolved && !r.scope.Excluded(super) {
				set[super] = true
			}
		}
	}
	return sorted(set)
}

// Constants returns field constant matches, filtered to the given fully
// qualified field names; with no arguments every match is returned.
func (r *ScanResult) Constants(names ...string) []classfile.FieldConstant {
	matches := append([]classfile.FieldConstant(nil), r.constants...)
	if len(names) > 0 {
		want := make(map[string]bool, len(names))
		for _, n := range names {
			want[n] = true
		}
		filtered := matches[:0]
		for _, m := range matches {
			if want[m.QualifiedField()] {
				filtered = append(filtered, m)
			}
		}
		matches = filtered
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].QualifiedField() < matches[j].QualifiedField()
	})
	return matches
}

// Stats summarizes the snapshot.
type Stats struct {
	ResolvedTypes int `json:"resolved_types"`
	Placeholders  int `json:"placeholders"`
	Classes       int `json:"classes"`
	Interfaces    int `json:"interfaces"`
	Annotations   int `json:"annotations"`
	Constants     int `json:"constants"`
}

func (r *ScanResult) Stats() Stats {
	var s Stats
	for _, n := range r.nodes {
		if !n.Resolved {
			s.Placeholders++
			continue
		}
		if !r.scope.InScope(n.Name) {
			continue
		}
		s.ResolvedTypes++
		switch n.Kind {
		case KindClass:
			s.Classes++
		case KindInterface:
			s.Interfaces++
		case KindAnnotation:
			s.Annotations++
		}
	}
	s.Constants = len(r.constants)
	return s
}

// --- set helpers ---

func (r *ScanResult) filterKind(set map[string]bool, kind Kind) map[string]bool {
	out := make(map[string]bool)
	for name := range set {
		if n := r.nodes[name]; n != nil && n.Resolved && n.Kind == kind {
			out[name] = true
		}
	}
	return out
}

func (r *ScanResult) filterSorted(set map[string]bool, kind Kind) []string {
	return sorted(r.filterKind(set, kind))
}

func (r *ScanResult) combineAll(closure map[string]map[string]bool, names []string) []string {
	return sorted(r.combineAllSet(closure, names))
}

func (r *ScanResult) combineAny(closure map[string]map[string]bool, names []string) []string {
	return sorted(r.combineAnySet(closure, names))
}

func (r *ScanResult) combineAllSet(closure map[string]map[string]bool, names []string) map[string]bool {
	out := make(map[string]bool)
	for i, name := range names {
		set := closure[name]
		if i == 0 {
			for k := range set {
				out[k] = true
			}
			continue
		}
		for k := range out {
			if !set[k] {
				delete(out, k)
			}
		}
	}
	return out
}

func (r *ScanResult) combineAnySet(closure map[string]map[string]bool, names []string) map[string]bool {
	out := make(map[string]bool)
	for _, name := range names {
		for k := range closure[name] {
			out[k] = true
		}
	}
	return out
}

func sorted(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
