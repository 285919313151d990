// Package scan enumerates classpath elements and drives the decode-and-merge
// pipeline that turns raw classfiles into a frozen query snapshot.
package scan

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/classlens/classlens/internal/config"
)

// Entry is one candidate classfile found on the classpath, with its bytes
// already materialized. Entries carry their classpath position implicitly:
// the enumerator emits them in precedence order and the merger folds them in
// that order, so the first occurrence of a qualified name wins.
type Entry struct {
	// Path is the entry's path within its classpath element,
	// '/'-separated (e.g. "com/example/Widget.class").
	Path string

	// Source is the directory or jar file that contained the entry.
	Source string

	// NameHint is the qualified name derived from Path. It is only a
	// hint: the decoded this_class entry is authoritative.
	NameHint string

	Data []byte
}

// Enumerator walks classpath elements and collects candidate classfiles.
type Enumerator struct {
	cfg *config.Config
}

func NewEnumerator(cfg *config.Config) *Enumerator {
	return &Enumerator{cfg: cfg}
}

// Enumerate walks the given classpath elements in precedence order. A
// directory contributes every .class file below it; a jar contributes its
// .class entries in archive order, and any jars named by its manifest
// Class-Path attribute immediately after it. Jars are visited at most once.
func (e *Enumerator) Enumerate(elements []string) ([]Entry, error) {
	var entries []Entry
	visited := make(map[string]bool)

	var walk func(element string) error
	walk = func(element string) error {
		abs, err := filepath.Abs(element)
		if err != nil {
			abs = element
		}
		if visited[abs] {
			return nil
		}
		visited[abs] = true

		info, err := os.Stat(element)
		if err != nil {
			return fmt.Errorf("classpath element %s: %w", element, err)
		}
		if info.IsDir() {
			return e.walkDir(element, &entries)
		}
		if isJar(element) {
			return e.walkJar(element, &entries, walk)
		}
		return fmt.Errorf("classpath element %s: not a directory or jar", element)
	}

	for _, element := range elements {
		if err := walk(element); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (e *Enumerator) walkDir(root string, entries *[]Entry) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && e.cfg.IsSkippedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isClassfile(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("reading %s: %w", p, err)
		}
		relSlash := filepath.ToSlash(rel)
		*entries = append(*entries, Entry{
			Path:     relSlash,
			Source:   root,
			NameHint: nameFromPath(relSlash),
			Data:     data,
		})
		return nil
	})
}

func (e *Enumerator) walkJar(jarPath string, entries *[]Entry, walk func(string) error) error {
	r, err := zip.OpenReader(jarPath)
	if err != nil {
		return fmt.Errorf("opening jar %s: %w", jarPath, err)
	}
	defer r.Close()

	var manifestRefs []string
	for _, f := range r.File {
		if f.Name == "META-INF/MANIFEST.MF" {
			data, err := readZipFile(f)
			if err != nil {
				return fmt.Errorf("jar %s manifest: %w", jarPath, err)
			}
			manifestRefs = manifestClassPath(data)
			continue
		}
		if !isClassfile(path.Base(f.Name)) {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return fmt.Errorf("jar %s entry %s: %w", jarPath, f.Name, err)
		}
		*entries = append(*entries, Entry{
			Path:     f.Name,
			Source:   jarPath,
			NameHint: nameFromPath(f.Name),
			Data:     data,
		})
	}

	// Manifest Class-Path references are resolved relative to the jar's
	// directory and appended after the jar's own entries. Missing
	// references are common in the wild and are skipped silently.
	for _, ref := range manifestRefs {
		refPath := filepath.Join(filepath.Dir(jarPath), filepath.FromSlash(ref))
		if _, err := os.Stat(refPath); err != nil {
			continue
		}
		if err := walk(refPath); err != nil {
			return err
		}
	}
	return nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// manifestClassPath extracts the Class-Path attribute from a jar manifest.
// Manifest lines wrap at 72 bytes; a continuation line starts with a space.
func manifestClassPath(manifest []byte) []string {
	lines := strings.Split(strings.ReplaceAll(string(manifest), "\r\n", "\n"), "\n")
	var unfolded []string
	for _, line := range lines {
		if strings.HasPrefix(line, " ") && len(unfolded) > 0 {
			unfolded[len(unfolded)-1] += line[1:]
			continue
		}
		unfolded = append(unfolded, line)
	}
	for _, line := range unfolded {
		if value, ok := strings.CutPrefix(line, "Class-Path:"); ok {
			return strings.Fields(value)
		}
	}
	return nil
}

func isJar(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".jar", ".zip":
		return true
	}
	return false
}

// isClassfile reports whether a file name is a candidate class. Module and
// package descriptors carry no type definition and are skipped.
func isClassfile(name string) bool {
	if !strings.HasSuffix(name, ".class") {
		return false
	}
	switch name {
	case "module-info.class", "package-info.class":
		return false
	}
	return true
}

// nameFromPath derives the qualified name hint from an entry path, e.g.
// "com/example/Widget.class" -> "com.example.Widget".
func nameFromPath(p string) string {
	p = strings.TrimSuffix(p, ".class")
	return strings.ReplaceAll(p, "/", ".")
}
