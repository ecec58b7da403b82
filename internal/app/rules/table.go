// Package rules provides the album alias table and the grouping-key normalizer.
package rules

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Rule maps variation album names of one artist onto a base album name.
type Rule struct {
	Artist     string   `yaml:"artist" validate:"required"`
	BaseAlbum  string   `yaml:"base_album" validate:"required"`
	Variations []string `yaml:"variations"`
}

// ruleFile is the on-disk layout when rules are nested under a key.
type ruleFile struct {
	Rules []Rule `yaml:"rules" validate:"dive"`
}

type lookupKey struct {
	artist string
	name   string
}

// Table is an immutable index of consolidation rules.
// A nil *Table behaves as an empty table.
type Table struct {
	rules     []Rule
	canonical map[lookupKey]string
}

// NewTable indexes the given rules. Later rules win when two map the same variation.
func NewTable(rules []Rule) *Table {
	t := &Table{
		rules:     append([]Rule(nil), rules...),
		canonical: make(map[lookupKey]string),
	}
	for _, r := range rules {
		artist := Fold(r.Artist)
		t.canonical[lookupKey{artist: artist, name: Fold(r.BaseAlbum)}] = r.BaseAlbum
		for _, v := range r.Variations {
			t.canonical[lookupKey{artist: artist, name: Fold(v)}] = r.BaseAlbum
		}
	}
	return t
}

// Load reads a rule file. A missing file yields an empty table, not an error.
// Both a bare list of rules and a document with a top-level "rules" key are accepted;
// JSON files with the same keys parse as well.
func Load(path string) (*Table, error) {
	if path == "" {
		return NewTable(nil), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			zlog.Info().Msgf("No consolidation rules at %s, aliasing disabled", path)
			return NewTable(nil), nil
		}
		return nil, errors.Wrap(err, "failed to read rules file")
	}

	rules, err := parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse rules file %s", path)
	}

	t := NewTable(rules)
	zlog.Info().Msgf("Loaded %d consolidation rules (%d aliases) from %s", len(rules), len(t.canonical), path)
	return t, nil
}

func parse(data []byte) ([]Rule, error) {
	var list []Rule
	if err := yaml.Unmarshal(data, &list); err != nil {
		var doc ruleFile
		if err2 := yaml.Unmarshal(data, &doc); err2 != nil {
			return nil, err2
		}
		list = doc.Rules
	}

	validate := validator.New()
	for i := range list {
		if err := validate.Struct(list[i]); err != nil {
			return nil, errors.Wrapf(err, "rule %d", i)
		}
	}
	return list, nil
}

// Canonical returns the base album name in its stored casing when a rule matches.
func (t *Table) Canonical(name, artist string) (string, bool) {
	if t == nil || len(t.canonical) == 0 {
		return "", false
	}
	base, ok := t.canonical[lookupKey{artist: Fold(artist), name: Fold(name)}]
	return base, ok
}

// Rules returns a copy of the loaded rules.
func (t *Table) Rules() []Rule {
	if t == nil {
		return nil
	}
	return append([]Rule(nil), t.rules...)
}

// Len returns the number of indexed aliases, base names included.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.canonical)
}
