package scan

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/classlens/classlens/internal/classfile"
	"github.com/classlens/classlens/internal/config"
	"github.com/classlens/classlens/internal/graph"
)

// Scanner coordinates one scan pass: enumerate the classpath, decode every
// candidate classfile across parallel workers, merge the records
// sequentially in classpath order, then freeze a single ScanResult.
//
// Decoding is embarrassingly parallel (one immutable buffer in, one record
// out); the merge is single-writer because of the shared registry and the
// bidirectional-edge invariant. A pass either completes with a fresh
// snapshot or fails fatally; partial results are never published.
type Scanner struct {
	cfg   *config.Config
	scope *graph.Scope
	wants classfile.ConstantRequests
}

// New compiles the scope rules and constant field requests up front, so
// configuration errors surface before any scanning begins.
func New(cfg *config.Config) (*Scanner, error) {
	scope, err := cfg.CompileScope()
	if err != nil {
		return nil, err
	}
	wants, err := cfg.ConstantRequests()
	if err != nil {
		return nil, err
	}
	return &Scanner{cfg: cfg, scope: scope, wants: wants}, nil
}

// Scope returns the compiled scope filter.
func (s *Scanner) Scope() *graph.Scope { return s.scope }

// Result holds the output of one completed scan pass.
type Result struct {
	Snapshot  *graph.ScanResult
	Graph     *graph.Graph
	Constants []classfile.FieldConstant

	// Diagnostics collects per-entry decode failures. They never abort
	// the pass; the failing entries are simply absent from the graph.
	Diagnostics []error

	EntryCount int
	Duration   time.Duration
}

// Run executes one scan pass over the given classpath elements.
func (s *Scanner) Run(elements []string) (*Result, error) {
	start := time.Now()

	entries, err := NewEnumerator(s.cfg).Enumerate(elements)
	if err != nil {
		return nil, err
	}

	records := make([]*classfile.ClassRecord, len(entries))
	decodeErrs := make([]error, len(entries))

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				entry := entries[i]
				rec, err := classfile.Parse(entry.Data, s.wants)
				if err != nil {
					decodeErrs[i] = &classfile.DecodeError{
						Path: entry.Source + "!" + entry.Path,
						Err:  err,
					}
					continue
				}
				records[i] = rec
			}
		}()
	}
	for i := range entries {
		// Explicitly excluded entries are skipped before decoding; the
		// scope rules are applied again, path by path, at query time.
		if s.scope.Excluded(entries[i].NameHint) {
			continue
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	// Sequential merge in classpath order keeps first-seen-wins masking
	// deterministic regardless of decode scheduling.
	g := graph.New()
	var constants []classfile.FieldConstant
	var diags []error
	for i, rec := range records {
		if err := decodeErrs[i]; err != nil {
			diags = append(diags, err)
			continue
		}
		if rec == nil {
			continue
		}
		merged, err := g.Merge(rec)
		if err != nil {
			return nil, fmt.Errorf("merging %s from %s: %w", entries[i].Path, entries[i].Source, err)
		}
		if merged {
			constants = append(constants, rec.Constants...)
		}
	}

	return &Result{
		Snapshot:    graph.Compute(g, s.scope, constants),
		Graph:       g,
		Constants:   constants,
		Diagnostics: diags,
		EntryCount:  len(entries),
		Duration:    time.Since(start),
	}, nil
}
