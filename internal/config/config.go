// Package config holds the configuration for one batch run of the
// jbtools commands. Values are read through viper (config file, env,
// flags) and passed into the commands explicitly; nothing in this
// package is ambient process state.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Import configures one run of the JitterBug importer.
type Import struct {
	// Assignee is the address of the default assignee for every
	// imported bug.
	Assignee string
	// Reporter is the address credited with synthetic notes (the
	// .notes file has no author of its own).
	Reporter string
	// Group is the Bugzilla group private bugs are assigned to.
	Group string
	// Domain is appended to bare usernames that carry no domain part.
	Domain string

	Product   string
	Component string
	Version   string

	// Timezone interprets source timestamps that carry no zone.
	Timezone string
	Location *time.Location

	// Aliases rewrites known addresses onto one canonical identity.
	Aliases map[string]string

	// DatabaseURL is the Postgres connection string for the target
	// Bugzilla schema.
	DatabaseURL string
}

// ImportFromViper builds an Import config from bound viper keys,
// loading the timezone and the optional alias mapping file.
func ImportFromViper(v *viper.Viper) (*Import, error) {
	cfg := &Import{
		Assignee:    v.GetString("assignee"),
		Reporter:    v.GetString("reporter"),
		Group:       v.GetString("group"),
		Domain:      v.GetString("domain"),
		Product:     v.GetString("product"),
		Component:   v.GetString("component"),
		Version:     v.GetString("version"),
		Timezone:    v.GetString("timezone"),
		DatabaseURL: v.GetString("database-url"),
		Aliases:     map[string]string{},
	}
	if cfg.Version == "" {
		cfg.Version = "unspecified"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	if path := v.GetString("email-mapping"); path != "" {
		aliases, err := LoadAliases(path)
		if err != nil {
			return nil, err
		}
		cfg.Aliases = aliases
	}

	return cfg, cfg.validate()
}

func (c *Import) validate() error {
	for _, f := range []struct{ name, value string }{
		{"assignee", c.Assignee},
		{"reporter", c.Reporter},
		{"group", c.Group},
		{"domain", c.Domain},
		{"product", c.Product},
		{"database-url", c.DatabaseURL},
	} {
		if f.value == "" {
			return fmt.Errorf("required setting %q is missing", f.name)
		}
	}
	return nil
}

// LoadAliases reads a YAML mapping of address -> canonical address.
// Both sides are lowercased so lookups after normalization always hit.
func LoadAliases(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read email mapping: %w", err)
	}

	raw := map[string]string{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse email mapping %s: %w", path, err)
	}

	aliases := make(map[string]string, len(raw))
	for from, to := range raw {
		aliases[strings.ToLower(from)] = strings.ToLower(to)
	}
	return aliases, nil
}

// Poll configures one run of the bug-count poller.
type Poll struct {
	// BaseURL is the Bugzilla REST endpoint, e.g.
	// https://api-dev.bugzilla.mozilla.org/latest.
	BaseURL string
	// Auth is the query fragment appended to every request
	// (credentials or API key).
	Auth string
	// OutDir receives one raw JSON archive file per query.
	OutDir string
	// DSN is the MySQL connection string for the stats schema.
	DSN string
	// Debug archives to OutDir but skips all SQL.
	Debug bool
}

// PollFromViper builds a Poll config from bound viper keys.
func PollFromViper(v *viper.Viper) (*Poll, error) {
	cfg := &Poll{
		BaseURL: v.GetString("base-url"),
		Auth:    v.GetString("auth"),
		OutDir:  v.GetString("out-dir"),
		DSN:     v.GetString("mysql-dsn"),
		Debug:   v.GetBool("debug"),
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("required setting %q is missing", "base-url")
	}
	if cfg.OutDir == "" {
		cfg.OutDir = os.TempDir()
	}
	if cfg.Debug {
		cfg.OutDir = os.TempDir()
	}
	if !cfg.Debug && cfg.DSN == "" {
		return nil, fmt.Errorf("required setting %q is missing", "mysql-dsn")
	}
	return cfg, nil
}

// Team names one team and the SQL filter that selects its
// product/component rows in the stats schema.
type Team struct {
	Name   string `mapstructure:"name"`
	Filter string `mapstructure:"filter"`
}

// Graph configures one run of the team risk chart renderer.
type Graph struct {
	DSN    string
	OutDir string
	// Since bounds the historical window, e.g. "2009-09-01".
	Since time.Time
	Teams []Team
}

// GraphFromViper builds a Graph config from bound viper keys. Teams
// come from the config file only; there is no sane flag syntax for
// them.
func GraphFromViper(v *viper.Viper) (*Graph, error) {
	cfg := &Graph{
		DSN:    v.GetString("mysql-dsn"),
		OutDir: v.GetString("out-dir"),
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("required setting %q is missing", "mysql-dsn")
	}
	if cfg.OutDir == "" {
		cfg.OutDir = "."
	}

	since := v.GetString("since")
	if since == "" {
		since = "2009-09-01"
	}
	t, err := time.Parse("2006-01-02", since)
	if err != nil {
		return nil, fmt.Errorf("invalid since date %q: %w", since, err)
	}
	cfg.Since = t

	if err := v.UnmarshalKey("teams", &cfg.Teams); err != nil {
		return nil, fmt.Errorf("parse teams: %w", err)
	}
	if len(cfg.Teams) == 0 {
		return nil, fmt.Errorf("no teams configured")
	}
	return cfg, nil
}
