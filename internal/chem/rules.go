package chem

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rule is one transformation in the catalog. The orchestrator treats the
// pattern as opaque; only the structure service interprets it.
type Rule struct {
	ID      string `yaml:"id"`
	Pattern string `yaml:"pattern"`
}

// DefaultRules is the built-in transformation catalog: halogen swaps,
// methyl/hydroxyl/amino group edits, and one ring modification.
var DefaultRules = []Rule{
	{ID: "F_to_Cl", Pattern: "[#6:1][F]>>[#6:1][Cl]"},
	{ID: "Cl_to_F", Pattern: "[#6:1][Cl]>>[#6:1][F]"},
	{ID: "Br_to_Cl", Pattern: "[#6:1][Br]>>[#6:1][Cl]"},
	{ID: "Cl_to_Br", Pattern: "[#6:1][Cl]>>[#6:1][Br]"},
	{ID: "aromatic_methylation", Pattern: "[c:1][H]>>[c:1]C"},
	{ID: "demethylation", Pattern: "[C:1][CH3]>>[C:1][H]"},
	{ID: "OH_to_OCH3", Pattern: "[#6:1][OH]>>[#6:1][OCH3]"},
	{ID: "OCH3_to_OH", Pattern: "[#6:1][OCH3]>>[#6:1][OH]"},
	{ID: "NH2_to_NHCH3", Pattern: "[#6:1][NH2]>>[#6:1][NHCH3]"},
	{ID: "NHCH3_to_NH2", Pattern: "[#6:1][NHCH3]>>[#6:1][NH2]"},
	{ID: "benzene_to_pyridine", Pattern: "[c:1]1[c:2][c:3][c:4][c:5][c:6]1>>[c:1]1[c:2][n:3][c:4][c:5][c:6]1"},
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads a rule catalog from a YAML file. An empty path returns
// the built-in catalog.
func LoadRules(path string) ([]Rule, error) {
	if path == "" {
		return DefaultRules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule catalog: %w", err)
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rule catalog: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("rule catalog %s contains no rules", path)
	}
	for i, r := range file.Rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule catalog %s: rule %d has no id", path, i)
		}
	}
	return file.Rules, nil
}
