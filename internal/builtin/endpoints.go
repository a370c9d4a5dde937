package builtin

import (
	"errors"
	"fmt"
	"strings"

	"medic/internal/artifacts"
)

// EndpointsAssertion requires an application to be integrated over at most
// one of the listed endpoints: the endpoints are mutually exclusive.
type EndpointsAssertion struct {
	App       string   `yaml:"app" validate:"required"`
	Endpoints []string `yaml:"endpoints" validate:"min=2,dive,required"`
}

type endpointsChecker struct {
	assertions []EndpointsAssertion
}

func endpointsDecl() Decl {
	return Decl{
		Name:       "endpoints",
		Capability: artifacts.KindBundle,
		Doc:        "Assert that an application uses at most one of a set of mutually exclusive endpoints.",
		Fields: []Field{
			{Name: "app", Type: "string", Required: true},
			{Name: "endpoints", Type: "list of 2+ endpoint names", Required: true},
		},
		bind: func(args []map[string]any) (Checker, error) {
			assertions, err := decodeArgs[EndpointsAssertion](args)
			if err != nil {
				return nil, err
			}
			return &endpointsChecker{assertions: assertions}, nil
		},
	}
}

func (c *endpointsChecker) Check(models map[string]any) error {
	rels := bundleRelations(models)
	var errs []error
	for _, a := range c.assertions {
		used := usedEndpoints(rels, a.App, a.Endpoints)
		if len(used) > 1 {
			errs = append(errs, fmt.Errorf(
				"%s is related over mutually exclusive endpoints: %s",
				a.App, strings.Join(used, ", ")))
		}
	}
	return errors.Join(errs...)
}

// usedEndpoints returns which of the listed endpoints the app is related
// over, preserving the declared endpoint order.
func usedEndpoints(rels [][2]string, app string, endpoints []string) []string {
	related := make(map[string]bool)
	for _, rel := range rels {
		for _, end := range rel {
			name, endpoint, found := strings.Cut(end, ":")
			if found && name == app {
				related[endpoint] = true
			}
		}
	}
	var used []string
	for _, endpoint := range endpoints {
		if related[endpoint] {
			used = append(used, endpoint)
		}
	}
	return used
}
