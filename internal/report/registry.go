package report

import (
	"fmt"
	"regexp"
	"slices"
)

var placeholder = regexp.MustCompile(`@([A-Za-z_][A-Za-z0-9_]*)`)

// Registry maps report types to their extraction specs. It is built once and
// never mutated afterwards.
type Registry struct {
	specs map[Type]ExtractionSpec
}

// NewRegistry validates every spec and returns a registry holding them.
func NewRegistry(specs ...ExtractionSpec) (*Registry, error) {
	r := &Registry{specs: make(map[Type]ExtractionSpec, len(specs))}
	for _, s := range specs {
		if err := validateSpec(s); err != nil {
			return nil, err
		}
		if _, dup := r.specs[s.Type]; dup {
			return nil, fmt.Errorf("report %s: registered twice", s.Type)
		}
		r.specs[s.Type] = s
	}
	return r, nil
}

// Default returns the registry of built-in report definitions.
func Default() *Registry {
	r, err := NewRegistry(Definitions()...)
	if err != nil {
		panic(fmt.Sprintf("report: invalid built-in definition: %v", err))
	}
	return r
}

// Resolve returns the spec for t, or an UnknownReportType error.
func (r *Registry) Resolve(t Type) (ExtractionSpec, error) {
	s, ok := r.specs[t]
	if !ok {
		return ExtractionSpec{}, unknownType(t)
	}
	return s, nil
}

// Types returns the registered report types in sorted order.
func (r *Registry) Types() []Type {
	types := make([]Type, 0, len(r.specs))
	for t := range r.specs {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Specs returns every registered spec sorted by type.
func (r *Registry) Specs() []ExtractionSpec {
	out := make([]ExtractionSpec, 0, len(r.specs))
	for _, t := range r.Types() {
		out = append(out, r.specs[t])
	}
	return out
}

func validateSpec(s ExtractionSpec) error {
	if s.Type == "" {
		return fmt.Errorf("report spec with empty type")
	}
	if s.Query == "" {
		return fmt.Errorf("report %s: empty query", s.Type)
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("report %s: no columns declared", s.Type)
	}

	declared := map[string]bool{derivedToDateExclusive: true}
	required := make(map[string]bool)
	for _, p := range s.Params {
		required[p.Name] = p.Required
		if declared[p.Name] {
			return fmt.Errorf("report %s: param %q declared twice", s.Type, p.Name)
		}
		switch p.Kind {
		case KindDate, KindString, KindInt:
		default:
			return fmt.Errorf("report %s: param %q has unknown kind %q", s.Type, p.Name, p.Kind)
		}
		declared[p.Name] = true
	}

	for _, name := range placeholderNames(s.Query) {
		if !declared[name] {
			return fmt.Errorf("report %s: query uses undeclared param @%s", s.Type, name)
		}
		if name == derivedToDateExclusive && (!required[ParamFromDate] || !required[ParamToDate]) {
			return fmt.Errorf("report %s: @%s needs required %s and %s params",
				s.Type, derivedToDateExclusive, ParamFromDate, ParamToDate)
		}
	}
	return nil
}

// placeholderNames lists the distinct @name placeholders in query, in order
// of first appearance.
func placeholderNames(query string) []string {
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(query, -1) {
		if !slices.Contains(names, m[1]) {
			names = append(names, m[1])
		}
	}
	return names
}
