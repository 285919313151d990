package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/classlens/classlens/internal/graph"
	"github.com/classlens/classlens/internal/store"
)

var queryAny bool

var queryCmd = &cobra.Command{
	Use:   "query <kind> [name...]",
	Short: "Answer one structural query from the persisted index",
	Long: `Answer a structural query against the index built by a previous scan.

Kinds taking one type name:
  subclasses        classes transitively extending the class
  superclasses      classes the class transitively extends
  subinterfaces     interfaces transitively extending the interface
  superinterfaces   interfaces the interface transitively extends
  meta-annotated    annotations carrying the meta-annotation
  annotations       annotations declared directly on the class
  meta-annotations  annotations transitively reachable from the annotation

Kinds taking one or more names (intersection by default, --any for union):
  implementing      classes implementing the interface(s)
  annotated         classes carrying the annotation(s)

Kinds taking zero or more names:
  types             all resolved in-scope types
  constants         static final field values (names select specific fields)`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, names := args[0], args[1:]

		snapshot, err := loadSnapshot()
		if err != nil {
			return err
		}

		one := func() (string, error) {
			if len(names) != 1 {
				return "", fmt.Errorf("query %s takes exactly one name", kind)
			}
			return names[0], nil
		}
		atLeastOne := func() error {
			if len(names) == 0 {
				return fmt.Errorf("query %s takes at least one name", kind)
			}
			return nil
		}

		var out []string
		switch kind {
		case "subclasses":
			name, err := one()
			if err != nil {
				return err
			}
			out = snapshot.SubclassesOf(name)
		case "superclasses":
			name, err := one()
			if err != nil {
				return err
			}
			out = snapshot.SuperclassesOf(name)
		case "subinterfaces":
			name, err := one()
			if err != nil {
				return err
			}
			out = snapshot.SubinterfacesOf(name)
		case "superinterfaces":
			name, err := one()
			if err != nil {
				return err
			}
			out = snapshot.SuperinterfacesOf(name)
		case "meta-annotated":
			name, err := one()
			if err != nil {
				return err
			}
			out = snapshot.AnnotationsWithMetaAnnotation(name)
		case "annotations":
			name, err := one()
			if err != nil {
				return err
			}
			out = snapshot.AnnotationsOnClass(name)
		case "meta-annotations":
			name, err := one()
			if err != nil {
				return err
			}
			out = snapshot.MetaAnnotationsOnAnnotation(name)
		case "implementing":
			if err := atLeastOne(); err != nil {
				return err
			}
			if queryAny {
				out = snapshot.ImplementingAnyOf(names...)
			} else {
				out = snapshot.ImplementingAllOf(names...)
			}
		case "annotated":
			if err := atLeastOne(); err != nil {
				return err
			}
			if queryAny {
				out = snapshot.WithAnnotationAnyOf(names...)
			} else {
				out = snapshot.WithAnnotationAllOf(names...)
			}
		case "types":
			out = snapshot.AllTypes()
		case "constants":
			for _, c := range snapshot.Constants(names...) {
				fmt.Printf("%s %s = %v\n", c.Kind, c.QualifiedField(), c.Value)
			}
			return nil
		default:
			return fmt.Errorf("unknown query kind %q", kind)
		}

		for _, name := range out {
			fmt.Println(name)
		}
		return nil
	},
}

// loadSnapshot rebuilds the query snapshot from the persisted index, with
// the scope rules from the current configuration.
func loadSnapshot() (*graph.ScanResult, error) {
	cfg := GetConfig()
	scope, err := cfg.CompileScope()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(projectDir)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	g, constants, err := st.LoadGraph()
	if err != nil {
		return nil, fmt.Errorf("loading index: %w", err)
	}
	if g.Len() == 0 {
		return nil, fmt.Errorf("index is empty; run 'classlens scan' first")
	}
	return graph.Compute(g, scope, constants), nil
}

func init() {
	queryCmd.Flags().BoolVar(&queryAny, "any", false, "combine multiple names with union instead of intersection")
	rootCmd.AddCommand(queryCmd)
}
