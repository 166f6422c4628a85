package main

import (
	"os"
	"path"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// payeeSubstitutions maps raw cleaned payee names to the canonical name the
// ledger should carry, e.g. "Amzn Mktp Us" -> "Amazon".
type payeeSubstitutions map[string]string

func payeePath() string {
	return path.Join(*configDir, "payees.yaml")
}

func loadPayeeSubstitutions() (payeeSubstitutions, error) {
	data, err := os.ReadFile(payeePath())
	if os.IsNotExist(err) {
		return payeeSubstitutions{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %q", payeePath())
	}
	subst := payeeSubstitutions{}
	if err := yaml.Unmarshal(data, &subst); err != nil {
		return nil, errors.Wrapf(errMalformedInput, "%q: %v", payeePath(), err)
	}
	return subst, nil
}

func (ps payeeSubstitutions) persist() error {
	data, err := yaml.Marshal(ps)
	if err != nil {
		return errors.Wrap(err, "marshal payee substitutions")
	}
	if err := os.WriteFile(payeePath(), data, 0o644); err != nil {
		return errors.Wrapf(err, "write %q", payeePath())
	}
	return nil
}

// apply rewrites payees in place and reports how many rows changed.
func (ps payeeSubstitutions) apply(recs []Record) int {
	var n int
	for i := range recs {
		if canonical, has := ps[recs[i].Payee]; has && canonical != recs[i].Payee {
			recs[i].Payee = canonical
			n++
		}
	}
	return n
}
