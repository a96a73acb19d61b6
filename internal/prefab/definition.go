// Package prefab loads construct definitions from YAML and hydrates them into
// behavior prefabs with Lua-bound event actions.
package prefab

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/CredenceHamby/mydu-pve-mod/internal/behavior"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Definition is one prefab as written in a YAML file.
type Definition struct {
	Name      string                `yaml:"name"`
	Behaviors []behavior.Descriptor `yaml:"behaviors"`
	Events    EventBindings         `yaml:"events"`
}

// EventBindings names the Lua function bound to each construct event.
// Empty names are unbound.
type EventBindings struct {
	OnDestruction    string            `yaml:"on_destruction"`
	OnCoreStressHigh string            `yaml:"on_core_stress_high"`
	OnShieldHalf     string            `yaml:"on_shield_half"`
	OnShieldLow      string            `yaml:"on_shield_low"`
	OnShieldDown     string            `yaml:"on_shield_down"`
	Custom           map[string]string `yaml:"custom"`
}

func (b EventBindings) functions() []string {
	fns := []string{b.OnDestruction, b.OnCoreStressHigh, b.OnShieldHalf, b.OnShieldLow, b.OnShieldDown}
	for _, fn := range b.Custom {
		fns = append(fns, fn)
	}
	return fns
}

type prefabFile struct {
	Prefabs []Definition `yaml:"prefabs"`
}

// LoadDir reads every .yaml/.yml file in dir. Parse errors are collected so a
// single report names every broken file.
func LoadDir(dir string) ([]Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read prefab dir %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isPrefabFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var (
		defs []Definition
		errs error
	)
	seen := make(map[string]string)
	for _, name := range names {
		path := filepath.Join(dir, name)
		fileDefs, err := loadFile(path)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		for _, d := range fileDefs {
			if d.Name == "" {
				errs = multierr.Append(errs, fmt.Errorf("%s: prefab without name", path))
				continue
			}
			if prev, dup := seen[d.Name]; dup {
				errs = multierr.Append(errs, fmt.Errorf("%s: prefab %q already defined in %s", path, d.Name, prev))
				continue
			}
			seen[d.Name] = path
			defs = append(defs, d)
		}
	}
	return defs, errs
}

func loadFile(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var f prefabFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f.Prefabs, nil
}

func isPrefabFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
