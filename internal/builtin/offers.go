package builtin

import (
	"errors"
	"fmt"

	"medic/internal/artifacts"
)

// OfferAssertion requires a cross-model offer to exist, optionally over a
// specific endpoint and interface.
type OfferAssertion struct {
	Name      string `yaml:"name" validate:"required"`
	Endpoint  string `yaml:"endpoint"`
	Interface string `yaml:"interface"`
}

type offersChecker struct {
	assertions []OfferAssertion
}

func offersDecl() Decl {
	return Decl{
		Name:       "offers",
		Capability: artifacts.KindStatus,
		Doc:        "Assert that cross-model offers exist with the expected endpoint and interface.",
		Fields: []Field{
			{Name: "name", Type: "string", Required: true},
			{Name: "endpoint", Type: "string"},
			{Name: "interface", Type: "string"},
		},
		bind: func(args []map[string]any) (Checker, error) {
			assertions, err := decodeArgs[OfferAssertion](args)
			if err != nil {
				return nil, err
			}
			return &offersChecker{assertions: assertions}, nil
		},
	}
}

func (c *offersChecker) Check(models map[string]any) error {
	var errs []error
	for _, model := range sortedKeys(models) {
		offers := mapAt(models[model], "offers")
		for _, a := range c.assertions {
			offer, ok := offers[a.Name].(map[string]any)
			if !ok {
				errs = append(errs, fmt.Errorf(
					"offer %q not found in model %q", a.Name, model))
				continue
			}
			if a.Endpoint == "" {
				continue
			}
			endpoints := mapAt(offer, "endpoints")
			endpoint, ok := endpoints[a.Endpoint].(map[string]any)
			if !ok {
				errs = append(errs, fmt.Errorf(
					"offer %q in model %q has no endpoint %q", a.Name, model, a.Endpoint))
				continue
			}
			if a.Interface == "" {
				continue
			}
			iface, _ := endpoint["interface"].(string)
			if iface != a.Interface {
				errs = append(errs, fmt.Errorf(
					"offer %q endpoint %q: interface %q != %q",
					a.Name, a.Endpoint, a.Interface, iface))
			}
		}
	}
	return errors.Join(errs...)
}
