package builtin

import (
	"errors"
	"fmt"
	"sort"

	"medic/internal/artifacts"
)

// ApplicationAssertion requires an application to be deployed, optionally
// within a unit-count range.
type ApplicationAssertion struct {
	Name    string `yaml:"name" validate:"required"`
	Minimum *int   `yaml:"minimum" validate:"omitempty,gte=0"`
	Maximum *int   `yaml:"maximum" validate:"omitempty,gte=0"`
}

type applicationsChecker struct {
	assertions []ApplicationAssertion
}

func applicationsDecl() Decl {
	return Decl{
		Name:       "applications",
		Capability: artifacts.KindStatus,
		Doc:        "Assert that applications are deployed, optionally within a scale range.",
		Fields: []Field{
			{Name: "name", Type: "string", Required: true},
			{Name: "minimum", Type: "int >= 0"},
			{Name: "maximum", Type: "int >= 0"},
		},
		bind: func(args []map[string]any) (Checker, error) {
			assertions, err := decodeArgs[ApplicationAssertion](args)
			if err != nil {
				return nil, err
			}
			return &applicationsChecker{assertions: assertions}, nil
		},
	}
}

func (c *applicationsChecker) Check(models map[string]any) error {
	var errs []error
	for _, model := range sortedKeys(models) {
		apps := mapAt(models[model], "applications")
		for _, a := range c.assertions {
			app, ok := apps[a.Name].(map[string]any)
			if !ok {
				errs = append(errs, fmt.Errorf(
					"application %q not found in model %q", a.Name, model))
				continue
			}
			scale, ok := intAt(app, "scale")
			if !ok {
				if a.Minimum != nil || a.Maximum != nil {
					errs = append(errs, fmt.Errorf(
						"application %q in model %q reports no scale", a.Name, model))
				}
				continue
			}
			if a.Minimum != nil && scale < *a.Minimum {
				errs = append(errs, fmt.Errorf(
					"%s scale (%d) is below the allowable limit: %d in model %q",
					a.Name, scale, *a.Minimum, model))
			}
			if a.Maximum != nil && scale > *a.Maximum {
				errs = append(errs, fmt.Errorf(
					"%s scale (%d) exceeds the allowable limit: %d in model %q",
					a.Name, scale, *a.Maximum, model))
			}
		}
	}
	return errors.Join(errs...)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
