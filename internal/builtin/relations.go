package builtin

import (
	"errors"
	"fmt"

	"medic/internal/artifacts"
)

// RelationAssertion requires one relation pair to exist verbatim in a
// bundle, in either endpoint order.
//
//	relations:
//	  - apps: [grafana:catalogue, catalogue:catalogue]
type RelationAssertion struct {
	Apps []string `yaml:"apps" validate:"len=2,dive,required"`
}

type relationsChecker struct {
	assertions []RelationAssertion
}

func relationsDecl() Decl {
	return Decl{
		Name:       "relations",
		Capability: artifacts.KindBundle,
		Doc:        "Assert that relation pairs exist in the deployed bundle.",
		Fields: []Field{
			{Name: "apps", Type: "list of 2 endpoints", Required: true},
		},
		bind: func(args []map[string]any) (Checker, error) {
			assertions, err := decodeArgs[RelationAssertion](args)
			if err != nil {
				return nil, err
			}
			return &relationsChecker{assertions: assertions}, nil
		},
	}
}

// bundleRelations flattens the relation pairs declared across all models.
func bundleRelations(models map[string]any) [][2]string {
	var rels [][2]string
	for _, model := range sortedKeys(models) {
		for _, raw := range sliceAt(models[model], "relations") {
			pair, ok := raw.([]any)
			if !ok || len(pair) != 2 {
				continue
			}
			a, aok := pair[0].(string)
			b, bok := pair[1].(string)
			if aok && bok {
				rels = append(rels, [2]string{a, b})
			}
		}
	}
	return rels
}

func (c *relationsChecker) Check(models map[string]any) error {
	rels := bundleRelations(models)
	var errs []error
	for _, a := range c.assertions {
		want := [2]string{a.Apps[0], a.Apps[1]}
		if !hasRelation(rels, want) {
			errs = append(errs, fmt.Errorf("relation %v not found", a.Apps))
		}
	}
	return errors.Join(errs...)
}

func hasRelation(rels [][2]string, want [2]string) bool {
	for _, rel := range rels {
		if rel == want || (rel[0] == want[1] && rel[1] == want[0]) {
			return true
		}
	}
	return false
}
