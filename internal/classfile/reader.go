package classfile

import "fmt"

const classMagic = 0xCAFEBABE

// annotationInterface marks annotation types: every annotation's declared
// interfaces contain exactly this name.
const annotationInterface = "java.lang.annotation.Annotation"

// Field access flags the decoder cares about. Visibility modifiers are
// deliberately ignored when matching constant fields.
const (
	accStatic     = 0x0008
	accFinal      = 0x0010
	accInterface  = 0x0200
	accAnnotation = 0x2000
)

// maxAnnotationDepth bounds nested annotation values so a crafted attribute
// cannot exhaust the stack.
const maxAnnotationDepth = 64

// Parse decodes one complete classfile image into a ClassRecord. The
// constants argument maps declaring class names to the static final field
// names whose values the caller wants; pass nil when none are requested.
// Method bodies and code attributes are never interpreted.
func Parse(data []byte, constants ConstantRequests) (*ClassRecord, error) {
	b := &buffer{data: data}

	magic := b.u4()
	if b.err != nil {
		return nil, b.err
	}
	if magic != classMagic {
		return nil, fmt.Errorf("bad magic 0x%08X", magic)
	}
	b.u2() // minor version
	b.u2() // major version

	pool, err := readPool(b)
	if err != nil {
		return nil, err
	}

	flags := b.u2()
	thisIdx := b.u2()
	superIdx := b.u2()
	if b.err != nil {
		return nil, b.err
	}

	name, err := pool.className(thisIdx)
	if err != nil {
		return nil, fmt.Errorf("this_class: %w", err)
	}

	rec := &ClassRecord{
		Name:        name,
		IsInterface: flags&accInterface != 0,
	}

	// super_class index 0 signals the root class. Interfaces always cite
	// java.lang.Object here, but have no class supertype of their own.
	if superIdx != 0 && !rec.IsInterface {
		super, err := pool.className(superIdx)
		if err != nil {
			return nil, fmt.Errorf("super_class: %w", err)
		}
		rec.Superclass = super
	}

	ifaceCount := b.u2()
	for i := 0; i < ifaceCount; i++ {
		idx := b.u2()
		if b.err != nil {
			return nil, b.err
		}
		iname, err := pool.className(idx)
		if err != nil {
			return nil, fmt.Errorf("interfaces[%d]: %w", i, err)
		}
		rec.Interfaces = append(rec.Interfaces, iname)
	}

	if flags&accAnnotation != 0 {
		rec.IsAnnotation = true
	}
	for _, iname := range rec.Interfaces {
		if iname == annotationInterface {
			rec.IsAnnotation = true
		}
	}
	if rec.IsAnnotation {
		rec.IsInterface = true
	}

	if err := readFields(b, pool, rec, constants[name]); err != nil {
		return nil, err
	}

	// The methods table is skipped entirely.
	methodCount := b.u2()
	for i := 0; i < methodCount; i++ {
		b.skip(6) // access_flags, name_index, descriptor_index
		skipAttributes(b)
	}

	if err := readClassAttributes(b, pool, rec); err != nil {
		return nil, err
	}
	if b.err != nil {
		return nil, b.err
	}
	return rec, nil
}

// readFields walks the fields table, resolving a ConstantValue attribute for
// every requested field that is both static and final. Fields without a
// compile-time constant (or with a reference or array type) are skipped.
func readFields(b *buffer, pool constantPool, rec *ClassRecord, want map[string]bool) error {
	fieldCount := b.u2()
	for i := 0; i < fieldCount; i++ {
		fflags := b.u2()
		nameIdx := b.u2()
		descIdx := b.u2()
		attrCount := b.u2()
		if b.err != nil {
			return b.err
		}

		requested := false
		var fname, descriptor string
		if len(want) > 0 {
			var err error
			fname, err = pool.utf8(nameIdx)
			if err != nil {
				return fmt.Errorf("fields[%d]: %w", i, err)
			}
			if want[fname] && fflags&accStatic != 0 && fflags&accFinal != 0 {
				descriptor, err = pool.utf8(descIdx)
				if err != nil {
					return fmt.Errorf("fields[%d]: %w", i, err)
				}
				requested = true
			}
		}

		for j := 0; j < attrCount; j++ {
			anameIdx := b.u2()
			alen := b.u4()
			if b.err != nil {
				return b.err
			}
			aname, err := pool.utf8(anameIdx)
			if err != nil {
				return fmt.Errorf("fields[%d] attributes[%d]: %w", i, j, err)
			}
			if requested && aname == "ConstantValue" && alen == 2 {
				cvIdx := b.u2()
				if b.err != nil {
					return b.err
				}
				kind, value, err := pool.fieldConstant(cvIdx, descriptor)
				if err != nil {
					return fmt.Errorf("fields[%d] ConstantValue: %w", i, err)
				}
				if kind != "" {
					rec.Constants = append(rec.Constants, FieldConstant{
						Class: rec.Name,
						Field: fname,
						Kind:  kind,
						Value: value,
					})
				}
				continue
			}
			b.skip(int(alen))
		}
	}
	return b.err
}

// readClassAttributes reads the top-level attributes table, extracting
// annotation type names from the visible and invisible annotation
// attributes and skipping everything else.
func readClassAttributes(b *buffer, pool constantPool, rec *ClassRecord) error {
	attrCount := b.u2()
	for i := 0; i < attrCount; i++ {
		anameIdx := b.u2()
		alen := b.u4()
		if b.err != nil {
			return b.err
		}
		aname, err := pool.utf8(anameIdx)
		if err != nil {
			return fmt.Errorf("attributes[%d]: %w", i, err)
		}
		if aname == "RuntimeVisibleAnnotations" || aname == "RuntimeInvisibleAnnotations" {
			names, err := readAnnotations(b, pool)
			if err != nil {
				return fmt.Errorf("%s: %w", aname, err)
			}
			rec.Annotations = append(rec.Annotations, names...)
			continue
		}
		b.skip(int(alen))
	}
	return b.err
}

// readAnnotations parses a RuntimeVisibleAnnotations-shaped payload down to
// the annotation type names. Member values are structurally skipped.
func readAnnotations(b *buffer, pool constantPool) ([]string, error) {
	var names []string
	n := b.u2()
	for i := 0; i < n; i++ {
		name, err := readAnnotation(b, pool, 0)
		if err != nil {
			return nil, err
		}
		if b.err != nil {
			return nil, b.err
		}
		names = append(names, name)
	}
	return names, b.err
}

func readAnnotation(b *buffer, pool constantPool, depth int) (string, error) {
	if depth > maxAnnotationDepth {
		return "", fmt.Errorf("annotation nesting deeper than %d", maxAnnotationDepth)
	}
	typeIdx := b.u2()
	if b.err != nil {
		return "", b.err
	}
	descriptor, err := pool.utf8(typeIdx)
	if err != nil {
		return "", err
	}
	name, err := descriptorClassName(descriptor)
	if err != nil {
		return "", err
	}
	pairs := b.u2()
	for i := 0; i < pairs; i++ {
		b.u2() // element name
		if err := skipElementValue(b, pool, depth); err != nil {
			return "", err
		}
	}
	return name, b.err
}

// skipElementValue advances past one annotation member value without
// retaining it.
func skipElementValue(b *buffer, pool constantPool, depth int) error {
	if depth > maxAnnotationDepth {
		return fmt.Errorf("annotation nesting deeper than %d", maxAnnotationDepth)
	}
	tag := b.u1()
	if b.err != nil {
		return b.err
	}
	switch tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's', 'c':
		b.skip(2)
	case 'e':
		b.skip(4)
	case '@':
		_, err := readAnnotation(b, pool, depth+1)
		return err
	case '[':
		n := b.u2()
		for i := 0; i < n; i++ {
			if err := skipElementValue(b, pool, depth+1); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("annotation element: unknown value tag %q", rune(tag))
	}
	return b.err
}

// skipAttributes advances past a full attributes table (count plus entries).
func skipAttributes(b *buffer) {
	count := b.u2()
	for i := 0; i < count; i++ {
		b.u2() // name index
		n := b.u4()
		b.skip(int(n))
		if b.err != nil {
			return
		}
	}
}
