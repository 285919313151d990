package graph

import (
	"errors"
	"testing"

	"github.com/classlens/classlens/internal/classfile"
)

func mustMerge(t *testing.T, g *Graph, recs ...*classfile.ClassRecord) {
	t.Helper()
	for _, rec := range recs {
		if _, err := g.Merge(rec); err != nil {
			t.Fatalf("Merge(%s): %v", rec.Name, err)
		}
	}
}

func TestMergePlaceholderPromotion(t *testing.T) {
	// The subclass arrives first; its superclass starts as a placeholder
	// and is promoted in place when its own record shows up.
	g := New()
	mustMerge(t, g,
		&classfile.ClassRecord{Name: "app.Button", Superclass: "app.Widget"},
	)

	n := g.Node("app.Widget")
	if n == nil {
		t.Fatal("no placeholder created for cited superclass")
	}
	if n.Resolved {
		t.Fatal("placeholder marked resolved before its record arrived")
	}
	if !n.Subtypes["app.Button"] {
		t.Error("placeholder missing reverse edge to app.Button")
	}

	mustMerge(t, g,
		&classfile.ClassRecord{Name: "app.Widget", Superclass: "java.lang.Object"},
	)
	if !n.Resolved {
		t.Error("placeholder not promoted by its own record")
	}
	if n.Superclass != "java.lang.Object" {
		t.Errorf("Superclass = %q, want java.lang.Object", n.Superclass)
	}
	if !n.Subtypes["app.Button"] {
		t.Error("promotion lost the existing reverse edge")
	}
}

func TestMergeOrderIndependence(t *testing.T) {
	records := func() []*classfile.ClassRecord {
		return []*classfile.ClassRecord{
			{Name: "app.Widget", Superclass: "java.lang.Object", Interfaces: []string{"app.Paintable"}},
			{Name: "app.Button", Superclass: "app.Widget"},
			{Name: "app.Paintable", IsInterface: true},
		}
	}

	forward := New()
	mustMerge(t, forward, records()...)

	recs := records()
	backward := New()
	mustMerge(t, backward, recs[2], recs[1], recs[0])

	for _, name := range forward.Names() {
		fn, bn := forward.Node(name), backward.Node(name)
		if bn == nil {
			t.Fatalf("node %s missing after reversed merge order", name)
		}
		if fn.Resolved != bn.Resolved || fn.Kind != bn.Kind || fn.Superclass != bn.Superclass {
			t.Errorf("node %s differs across merge orders: %+v vs %+v", name, fn, bn)
		}
		if len(fn.Supertypes) != len(bn.Supertypes) || len(fn.Subtypes) != len(bn.Subtypes) {
			t.Errorf("node %s edge sets differ across merge orders", name)
		}
	}
}

func TestMergeEdgeSymmetry(t *testing.T) {
	g := New()
	mustMerge(t, g,
		&classfile.ClassRecord{Name: "app.Widget", Superclass: "java.lang.Object", Interfaces: []string{"app.Paintable"}, Annotations: []string{"app.UiElement"}},
		&classfile.ClassRecord{Name: "app.Paintable", IsInterface: true},
		&classfile.ClassRecord{Name: "app.UiElement", IsInterface: true, IsAnnotation: true},
	)

	for _, name := range g.Names() {
		n := g.Node(name)
		for super := range n.Supertypes {
			if !g.Node(super).Subtypes[name] {
				t.Errorf("edge %s -> %s has no reverse", name, super)
			}
		}
		for sub := range n.Subtypes {
			if !g.Node(sub).Supertypes[name] {
				t.Errorf("reverse edge %s -> %s has no forward", sub, name)
			}
		}
	}
}

func TestMergeDuplicateDiscarded(t *testing.T) {
	g := New()
	merged, err := g.Merge(&classfile.ClassRecord{
		Name:       "app.Widget",
		Superclass: "java.lang.Object",
		Interfaces: []string{"app.Paintable"},
	})
	if err != nil || !merged {
		t.Fatalf("first Merge = (%v, %v), want (true, nil)", merged, err)
	}

	// Same name later on the classpath, same superclass: masked.
	merged, err = g.Merge(&classfile.ClassRecord{
		Name:       "app.Widget",
		Superclass: "java.lang.Object",
		Interfaces: []string{"app.Other"},
	})
	if err != nil {
		t.Fatalf("duplicate Merge: %v", err)
	}
	if merged {
		t.Error("duplicate record reported as merged")
	}

	n := g.Node("app.Widget")
	if len(n.Interfaces) != 1 || n.Interfaces[0] != "app.Paintable" {
		t.Errorf("duplicate overwrote the first definition: Interfaces = %v", n.Interfaces)
	}
	if g.Node("app.Other") != nil {
		t.Error("discarded duplicate still created placeholder nodes")
	}
}

func TestMergeStructuralConflict(t *testing.T) {
	g := New()
	mustMerge(t, g, &classfile.ClassRecord{Name: "app.Widget", Superclass: "app.Base"})

	_, err := g.Merge(&classfile.ClassRecord{Name: "app.Widget", Superclass: "app.OtherBase"})
	var conflict *StructuralConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want StructuralConflict", err)
	}
	if conflict.Name != "app.Widget" || conflict.Existing != "app.Base" || conflict.Conflicting != "app.OtherBase" {
		t.Errorf("conflict = %+v", conflict)
	}
}

func TestMergeDuplicateAcrossKinds(t *testing.T) {
	// A class and an interface sharing a name never superclass-conflict;
	// the later record is simply masked.
	g := New()
	mustMerge(t, g, &classfile.ClassRecord{Name: "app.Widget", IsInterface: true})

	merged, err := g.Merge(&classfile.ClassRecord{Name: "app.Widget", Superclass: "app.Base"})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged {
		t.Error("masked record reported as merged")
	}
	if g.Node("app.Widget").Kind != KindInterface {
		t.Error("first-seen kind not retained")
	}
}

func TestKindRoundTrip(t *testing.T) {
	for _, k := range []Kind{KindClass, KindInterface, KindAnnotation} {
		got, err := KindFromString(k.String())
		if err != nil || got != k {
			t.Errorf("KindFromString(%q) = (%v, %v), want %v", k.String(), got, err, k)
		}
	}
	if _, err := KindFromString("enum"); err == nil {
		t.Error("KindFromString accepted an unknown kind")
	}
}
