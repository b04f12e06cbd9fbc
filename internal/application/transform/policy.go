package transform

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ecomdw/etl/internal/domain/dataset"
	"github.com/ecomdw/etl/internal/domain/shared"
	"gopkg.in/yaml.v3"
)

//go:embed policies.yaml
var defaultPolicyFile []byte

// Policy is the cleaning policy of one dataset
type Policy struct {
	Renames     map[string]string `yaml:"renames"`
	Passthrough []string          `yaml:"passthrough"`
	Unknown     []string          `yaml:"unknown"`
	Fill        map[string]string `yaml:"fill"`
	Dates       []string          `yaml:"dates"`
}

// Policies maps each dataset to its cleaning policy
type Policies map[dataset.Name]Policy

type policyFile struct {
	Datasets map[string]Policy `yaml:"datasets"`
}

// DefaultPolicies returns the built-in cleaning policies
func DefaultPolicies() (Policies, error) {
	return LoadPolicies(bytes.NewReader(defaultPolicyFile))
}

// LoadPolicyFile reads cleaning policies from a YAML file
func LoadPolicyFile(path string) (Policies, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open policy file: %w", err)
	}
	defer f.Close()
	return LoadPolicies(f)
}

// LoadPolicies decodes and validates cleaning policies
func LoadPolicies(r io.Reader) (Policies, error) {
	var file policyFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode policies: %w", err)
	}

	policies := make(Policies, len(file.Datasets))
	for key, p := range file.Datasets {
		name, err := dataset.ParseName(key)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown dataset %q", shared.ErrInvalidPolicy, key)
		}
		p = p.canonical()
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("%w: dataset %s: %v", shared.ErrInvalidPolicy, name, err)
		}
		policies[name] = p
	}
	return policies, nil
}

// For returns the policy of a dataset
func (ps Policies) For(name dataset.Name) (Policy, error) {
	p, ok := ps[name]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %s", shared.ErrPolicyNotFound, name)
	}
	return p, nil
}

// Target maps a canonical source column to its cleaned name
func (p Policy) Target(column string) (string, bool) {
	if to, ok := p.Renames[column]; ok {
		return to, true
	}
	for _, c := range p.Passthrough {
		if c == column {
			return c, true
		}
	}
	return "", false
}

// SourceColumns returns every source column the policy maps, sorted
func (p Policy) SourceColumns() []string {
	cols := make([]string, 0, len(p.Renames)+len(p.Passthrough))
	for from := range p.Renames {
		cols = append(cols, from)
	}
	cols = append(cols, p.Passthrough...)
	sort.Strings(cols)
	return cols
}

// IsDate reports whether the cleaned column is parsed as a date
func (p Policy) IsDate(column string) bool {
	return contains(p.Dates, column)
}

func (p Policy) canonical() Policy {
	out := Policy{
		Renames: make(map[string]string, len(p.Renames)),
		Fill:    make(map[string]string, len(p.Fill)),
	}
	for from, to := range p.Renames {
		out.Renames[dataset.Canonicalize(from)] = dataset.Canonicalize(to)
	}
	for col, v := range p.Fill {
		out.Fill[dataset.Canonicalize(col)] = v
	}
	out.Passthrough = canonicalAll(p.Passthrough)
	out.Unknown = canonicalAll(p.Unknown)
	out.Dates = canonicalAll(p.Dates)
	return out
}

func (p Policy) validate() error {
	// cleaned column -> source column producing it
	outputs := make(map[string]string)
	produce := func(from, to string) error {
		if prev, dup := outputs[to]; dup {
			return fmt.Errorf("columns %s and %s both produce %s", prev, from, to)
		}
		outputs[to] = from
		return nil
	}

	froms := make([]string, 0, len(p.Renames))
	for from := range p.Renames {
		froms = append(froms, from)
	}
	sort.Strings(froms)
	for _, from := range froms {
		to := p.Renames[from]
		if from == "" || to == "" {
			return fmt.Errorf("empty rename")
		}
		if err := produce(from, to); err != nil {
			return err
		}
	}
	for _, c := range p.Passthrough {
		if _, dup := p.Renames[c]; dup {
			return fmt.Errorf("column %s is both renamed and passed through", c)
		}
		if err := produce(c, c); err != nil {
			return err
		}
	}
	if len(outputs) == 0 {
		return fmt.Errorf("policy maps no columns")
	}

	check := func(kind string, cols []string) error {
		for _, c := range cols {
			if _, ok := outputs[c]; !ok {
				return fmt.Errorf("%s column %s is not produced by the policy", kind, c)
			}
		}
		return nil
	}
	if err := check("unknown", p.Unknown); err != nil {
		return err
	}
	if err := check("dates", p.Dates); err != nil {
		return err
	}
	for c := range p.Fill {
		if _, ok := outputs[c]; !ok {
			return fmt.Errorf("fill column %s is not produced by the policy", c)
		}
		if contains(p.Unknown, c) {
			return fmt.Errorf("column %s has both fill and unknown", c)
		}
	}
	return nil
}

func canonicalAll(cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		out = append(out, dataset.Canonicalize(c))
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
