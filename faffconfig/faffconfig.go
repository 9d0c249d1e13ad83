// Package faffconfig loads and validates config.toml, the process-wide
// ledger settings: timezone, plan source instances, compiler instances, and
// per-compiler signing identities. Loading uses github.com/BurntSushi/toml
// and follows a parse-then-validate shape, decoding into an unexported
// file-shaped struct before building and validating the public model.Config.
package faffconfig

import (
	"time"

	"github.com/BurntSushi/toml"

	"github.com/faffhub/faff-go/ledgererr"
	"github.com/faffhub/faff-go/model"
)

// fileInstance mirrors one [[plan_sources]] or [[compilers]] entry in
// config.toml.
type fileInstance struct {
	Plugin string         `toml:"plugin"`
	Name   string         `toml:"name"`
	Config map[string]any `toml:"config"`
}

// fileConfig mirrors config.toml's on-disk shape.
type fileConfig struct {
	Timezone    string              `toml:"timezone"`
	PlanSources []fileInstance      `toml:"plan_sources"`
	Compilers   []fileInstance      `toml:"compilers"`
	SigningIDs  map[string][]string `toml:"signing_ids"`
}

// Load parses and validates config.toml at path.
func Load(path string) (model.Config, error) {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return model.Config{}, ledgererr.Wrap(ledgererr.FileCorrupt, err, "parsing %s", path)
	}
	cfg := fromFile(fc)
	if err := validate(cfg); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

func fromFile(fc fileConfig) model.Config {
	cfg := model.Config{
		Timezone:   fc.Timezone,
		SigningIDs: fc.SigningIDs,
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	for _, i := range fc.PlanSources {
		cfg.PlanSources = append(cfg.PlanSources, model.PluginInstanceConfig{
			Plugin: i.Plugin, Name: i.Name, Config: i.Config,
		})
	}
	for _, i := range fc.Compilers {
		cfg.Compilers = append(cfg.Compilers, model.PluginInstanceConfig{
			Plugin: i.Plugin, Name: i.Name, Config: i.Config,
		})
	}
	return cfg
}

// validate fails fast with a descriptive error before any I/O against the
// ledger happens.
func validate(cfg model.Config) error {
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return ledgererr.Wrap(ledgererr.FileCorrupt, err, "invalid timezone %q", cfg.Timezone)
	}
	seen := make(map[string]bool)
	for _, i := range cfg.PlanSources {
		if i.Name == "" {
			return ledgererr.New(ledgererr.FileCorrupt, "plan_sources entry missing name")
		}
		if seen[i.Name] {
			return ledgererr.New(ledgererr.FileCorrupt, "duplicate plan_sources instance name %q", i.Name)
		}
		seen[i.Name] = true
	}
	seen = make(map[string]bool)
	for _, i := range cfg.Compilers {
		if i.Name == "" {
			return ledgererr.New(ledgererr.FileCorrupt, "compilers entry missing name")
		}
		if seen[i.Name] {
			return ledgererr.New(ledgererr.FileCorrupt, "duplicate compilers instance name %q", i.Name)
		}
		seen[i.Name] = true
	}
	return nil
}
