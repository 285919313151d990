package graph

import (
	"reflect"
	"testing"

	"github.com/classlens/classlens/internal/classfile"
)

// buildSnapshot merges the records in order and computes a snapshot under
// the given scope rules, the same sequence a scan pass runs.
func buildSnapshot(t *testing.T, includes, excludes []string, recs ...*classfile.ClassRecord) *ScanResult {
	t.Helper()
	g := New()
	var constants []classfile.FieldConstant
	for _, rec := range recs {
		merged, err := g.Merge(rec)
		if err != nil {
			t.Fatalf("Merge(%s): %v", rec.Name, err)
		}
		if merged {
			constants = append(constants, rec.Constants...)
		}
	}
	scope, err := NewScope(includes, excludes)
	if err != nil {
		t.Fatalf("NewScope: %v", err)
	}
	return Compute(g, scope, constants)
}

func wantNames(t *testing.T, what string, got []string, want ...string) {
	t.Helper()
	if len(want) == 0 {
		want = nil
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("%s = %v, want %v", what, got, want)
	}
}

func hierarchyRecords() []*classfile.ClassRecord {
	return []*classfile.ClassRecord{
		{Name: "app.Paintable", IsInterface: true},
		{Name: "app.Renderable", IsInterface: true, Interfaces: []string{"app.Paintable"}},
		{Name: "app.Widget", Superclass: "java.lang.Object", Interfaces: []string{"app.Renderable"}},
		{Name: "app.Button", Superclass: "app.Widget"},
		{Name: "app.IconButton", Superclass: "app.Button"},
	}
}

func TestClassClosures(t *testing.T) {
	r := buildSnapshot(t, nil, nil, hierarchyRecords()...)

	wantNames(t, "SubclassesOf(app.Widget)", r.SubclassesOf("app.Widget"),
		"app.Button", "app.IconButton")
	wantNames(t, "SubclassesOf(app.Button)", r.SubclassesOf("app.Button"),
		"app.IconButton")
	wantNames(t, "SuperclassesOf(app.IconButton)", r.SuperclassesOf("app.IconButton"),
		"app.Button", "app.Widget", "java.lang.Object")
	// The unresolved root is reported as a leaf ancestor.
	wantNames(t, "SuperclassesOf(app.Widget)", r.SuperclassesOf("app.Widget"),
		"java.lang.Object")
	wantNames(t, "SubclassesOf(app.IconButton)", r.SubclassesOf("app.IconButton"))
}

func TestClassClosureSymmetry(t *testing.T) {
	r := buildSnapshot(t, nil, nil, hierarchyRecords()...)

	for _, class := range []string{"app.Widget", "app.Button", "app.IconButton"} {
		for _, anc := range r.SuperclassesOf(class) {
			n := r.nodes[anc]
			if n == nil || !n.Resolved {
				continue
			}
			found := false
			for _, sub := range r.SubclassesOf(anc) {
				if sub == class {
					found = true
				}
			}
			if !found {
				t.Errorf("%s lists ancestor %s, but %s does not list it as descendant", class, anc, anc)
			}
		}
	}
}

func TestInterfaceClosures(t *testing.T) {
	r := buildSnapshot(t, nil, nil, hierarchyRecords()...)

	wantNames(t, "SubinterfacesOf(app.Paintable)", r.SubinterfacesOf("app.Paintable"),
		"app.Renderable")
	wantNames(t, "SuperinterfacesOf(app.Renderable)", r.SuperinterfacesOf("app.Renderable"),
		"app.Paintable")
	wantNames(t, "SuperinterfacesOf(app.Paintable)", r.SuperinterfacesOf("app.Paintable"))
}

func TestImplementers(t *testing.T) {
	r := buildSnapshot(t, nil, nil, hierarchyRecords()...)

	// app.Widget declares app.Renderable; its subclasses and the
	// superinterface app.Paintable inherit the relationship.
	want := []string{"app.Button", "app.IconButton", "app.Widget"}
	wantNames(t, "Implementing(app.Renderable)", r.Implementing("app.Renderable"), want...)
	wantNames(t, "Implementing(app.Paintable)", r.Implementing("app.Paintable"), want...)
}

func TestImplementingCombinators(t *testing.T) {
	r := buildSnapshot(t, nil, nil,
		&classfile.ClassRecord{Name: "app.Readable", IsInterface: true},
		&classfile.ClassRecord{Name: "app.Writable", IsInterface: true},
		&classfile.ClassRecord{Name: "app.Source", Superclass: "java.lang.Object", Interfaces: []string{"app.Readable"}},
		&classfile.ClassRecord{Name: "app.Pipe", Superclass: "java.lang.Object", Interfaces: []string{"app.Readable", "app.Writable"}},
	)

	wantNames(t, "ImplementingAllOf", r.ImplementingAllOf("app.Readable", "app.Writable"),
		"app.Pipe")
	wantNames(t, "ImplementingAnyOf", r.ImplementingAnyOf("app.Readable", "app.Writable"),
		"app.Pipe", "app.Source")
}

func annotationRecords() []*classfile.ClassRecord {
	annotation := func(name string, annotations ...string) *classfile.ClassRecord {
		return &classfile.ClassRecord{
			Name:         name,
			IsInterface:  true,
			IsAnnotation: true,
			Interfaces:   []string{"java.lang.annotation.Annotation"},
			Annotations:  annotations,
		}
	}
	return []*classfile.ClassRecord{
		// app.Meta and app.Tag annotate each other: a legal cycle.
		annotation("app.Meta", "app.Tag"),
		annotation("app.Tag", "app.Meta"),
		{Name: "app.Service", Superclass: "java.lang.Object", Annotations: []string{"app.Tag"}},
	}
}

func TestAnnotationClosures(t *testing.T) {
	r := buildSnapshot(t, nil, nil, annotationRecords()...)

	wantNames(t, "WithAnnotation(app.Tag)", r.WithAnnotation("app.Tag"),
		"app.Service")
	// Reached through the meta-annotation edge app.Tag -> app.Meta.
	wantNames(t, "WithAnnotation(app.Meta)", r.WithAnnotation("app.Meta"),
		"app.Service")
	wantNames(t, "AnnotationsWithMetaAnnotation(app.Meta)", r.AnnotationsWithMetaAnnotation("app.Meta"),
		"app.Tag")
	wantNames(t, "AnnotationsWithMetaAnnotation(app.Tag)", r.AnnotationsWithMetaAnnotation("app.Tag"),
		"app.Meta")
	wantNames(t, "AnnotationsOnClass(app.Service)", r.AnnotationsOnClass("app.Service"),
		"app.Tag")
	// The cycle leads back to the source, so the source appears in its
	// own forward closure.
	wantNames(t, "MetaAnnotationsOnAnnotation(app.Tag)", r.MetaAnnotationsOnAnnotation("app.Tag"),
		"app.Meta", "app.Tag")
}

func TestAnnotationCombinators(t *testing.T) {
	tag := func(name string) *classfile.ClassRecord {
		return &classfile.ClassRecord{
			Name:         name,
			IsInterface:  true,
			IsAnnotation: true,
			Interfaces:   []string{"java.lang.annotation.Annotation"},
		}
	}
	r := buildSnapshot(t, nil, nil,
		tag("app.Stateless"),
		tag("app.Cached"),
		&classfile.ClassRecord{Name: "app.UserService", Superclass: "java.lang.Object", Annotations: []string{"app.Stateless"}},
		&classfile.ClassRecord{Name: "app.OrderService", Superclass: "java.lang.Object", Annotations: []string{"app.Stateless", "app.Cached"}},
	)

	wantNames(t, "WithAnnotationAllOf", r.WithAnnotationAllOf("app.Stateless", "app.Cached"),
		"app.OrderService")
	wantNames(t, "WithAnnotationAnyOf", r.WithAnnotationAnyOf("app.Stateless", "app.Cached"),
		"app.OrderService", "app.UserService")
}

func TestScopeBreaksTransitivePaths(t *testing.T) {
	// lib.Y sits between two in-scope classes. Being resolved but out of
	// scope, it silently breaks every chain through it.
	r := buildSnapshot(t, []string{"app"}, nil,
		&classfile.ClassRecord{Name: "app.Z", Superclass: "java.lang.Object"},
		&classfile.ClassRecord{Name: "lib.Y", Superclass: "app.Z"},
		&classfile.ClassRecord{Name: "app.X", Superclass: "lib.Y"},
	)

	wantNames(t, "SuperclassesOf(app.X)", r.SuperclassesOf("app.X"))
	wantNames(t, "SubclassesOf(app.Z)", r.SubclassesOf("app.Z"))
	wantNames(t, "AllTypes", r.AllTypes(),
		"app.X", "app.Z", "java.lang.Object")
}

func TestExcludedPlaceholderSuppressed(t *testing.T) {
	r := buildSnapshot(t, nil, []string{"java"},
		&classfile.ClassRecord{Name: "app.Widget", Superclass: "java.lang.Object"},
	)

	wantNames(t, "SuperclassesOf(app.Widget)", r.SuperclassesOf("app.Widget"))
	wantNames(t, "AllTypes", r.AllTypes(), "app.Widget")
}

func TestConstants(t *testing.T) {
	r := buildSnapshot(t, nil, nil,
		&classfile.ClassRecord{
			Name:       "app.Settings",
			Superclass: "java.lang.Object",
			Constants: []classfile.FieldConstant{
				{Class: "app.Settings", Field: "VERSION", Kind: classfile.ConstString, Value: "2.1.0"},
				{Class: "app.Settings", Field: "MAX_SIZE", Kind: classfile.ConstInt, Value: int32(4096)},
			},
		},
	)

	all := r.Constants()
	if len(all) != 2 {
		t.Fatalf("Constants() returned %d matches, want 2", len(all))
	}
	// Sorted by qualified field name.
	if all[0].Field != "MAX_SIZE" || all[1].Field != "VERSION" {
		t.Errorf("Constants() order = [%s, %s]", all[0].Field, all[1].Field)
	}

	one := r.Constants("app.Settings.VERSION")
	if len(one) != 1 || one[0].Value != "2.1.0" {
		t.Errorf("Constants(app.Settings.VERSION) = %+v", one)
	}
	if got := r.Constants("app.Settings.MISSING"); len(got) != 0 {
		t.Errorf("Constants(missing) = %+v, want none", got)
	}
}

func TestStats(t *testing.T) {
	recs := append(hierarchyRecords(), annotationRecords()...)
	r := buildSnapshot(t, nil, nil, recs...)

	stats := r.Stats()
	if stats.Classes != 4 { // Widget, Button, IconButton, Service
		t.Errorf("Classes = %d, want 4", stats.Classes)
	}
	if stats.Interfaces != 2 { // Paintable, Renderable
		t.Errorf("Interfaces = %d, want 2", stats.Interfaces)
	}
	if stats.Annotations != 2 { // Meta, Tag
		t.Errorf("Annotations = %d, want 2", stats.Annotations)
	}
	if stats.ResolvedTypes != 8 {
		t.Errorf("ResolvedTypes = %d, want 8", stats.ResolvedTypes)
	}
	// java.lang.Object and java.lang.annotation.Annotation
	if stats.Placeholders != 2 {
		t.Errorf("Placeholders = %d, want 2", stats.Placeholders)
	}
}
