// This file locates and reads SAPI connection settings from dwave.conf
// profiles and the environment.

package sapi

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-ini/ini"
)

// A Config holds the settings needed to reach a solver.  An empty Endpoint or
// Token selects the local solvers.
type Config struct {
	Endpoint string // SAPI URL
	Token    string // API token
	Solver   string // Solver name
	Proxy    string // Proxy URL, if any
	Profile  string // Profile the file settings came from
	Path     string // Configuration file read, if any
}

// defaultsSection holds settings shared by every profile.
const defaultsSection = "defaults"

// configPaths lists the places LoadConfig looks for dwave.conf, in order.
func configPaths() []string {
	var paths []string
	if p := os.Getenv("DWAVE_CONFIG_FILE"); p != "" {
		paths = append(paths, p)
	}
	if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
		paths = append(paths, filepath.Join(x, "dwave", "dwave.conf"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "dwave", "dwave.conf"))
	}
	return append(paths, "dwave.conf")
}

// LoadConfig reads connection settings.  Settings come from the file at path
// (or, when path is empty, the first dwave.conf found in the usual places),
// then DW_INTERNAL__* variables, then DWAVE_API_* variables, each layer
// overriding the one before.  Within the file the [defaults] section is
// overlaid by the selected profile: the profile argument, else
// DWAVE_PROFILE, else the "profile" key of [defaults], else the first
// section.  A named file that cannot be read yields ErrNoInitFile.
func LoadConfig(path, profile string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		for _, p := range configPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	} else if _, err := os.Stat(path); err != nil {
		return nil, wrapErrorf(ErrNoInitFile, err, "Failed to read %s", path)
	}
	if path != "" {
		if err := cfg.readFile(path, profile); err != nil {
			return nil, err
		}
	}
	cfg.overlayEnv()
	return cfg, nil
}

func (c *Config) readFile(path, profile string) error {
	f, err := ini.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return wrapErrorf(ErrNoInitFile, err, "Failed to read %s", path)
		}
		return wrapErrorf(ErrNoInitFile, err, "Malformed configuration file %s", path)
	}
	c.Path = path

	if profile == "" {
		profile = os.Getenv("DWAVE_PROFILE")
	}
	if profile == "" && f.HasSection(defaultsSection) {
		profile = f.Section(defaultsSection).Key("profile").String()
	}
	if profile == "" {
		for _, name := range f.SectionStrings() {
			if name != ini.DefaultSection && name != defaultsSection {
				profile = name
				break
			}
		}
	}
	if profile != "" && !f.HasSection(profile) {
		return newErrorf(ErrInvalidParameter, "Profile %q not found in %s", profile, path)
	}
	c.Profile = profile

	sections := []string{defaultsSection}
	if profile != "" {
		sections = append(sections, profile)
	}
	for _, name := range sections {
		if !f.HasSection(name) {
			continue
		}
		s := f.Section(name)
		for key, dst := range map[string]*string{
			"endpoint": &c.Endpoint,
			"token":    &c.Token,
			"solver":   &c.Solver,
			"proxy":    &c.Proxy,
		} {
			if s.HasKey(key) {
				*dst = s.Key(key).String()
			}
		}
	}
	return nil
}

// overlayEnv applies the legacy DW_INTERNAL__* variables, then the
// DWAVE_API_* variables.
func (c *Config) overlayEnv() {
	layers := []map[string]*string{
		{
			"DW_INTERNAL__HTTPLINK":  &c.Endpoint,
			"DW_INTERNAL__TOKEN":     &c.Token,
			"DW_INTERNAL__SOLVER":    &c.Solver,
			"DW_INTERNAL__HTTPPROXY": &c.Proxy,
		},
		{
			"DWAVE_API_ENDPOINT": &c.Endpoint,
			"DWAVE_API_TOKEN":    &c.Token,
			"DWAVE_API_SOLVER":   &c.Solver,
			"DWAVE_API_PROXY":    &c.Proxy,
		},
	}
	for _, layer := range layers {
		for env, dst := range layer {
			if v, ok := os.LookupEnv(env); ok && v != "" {
				*dst = v
			}
		}
	}
}

// IsLocal says whether the settings select the local solvers.
func (c *Config) IsLocal() bool {
	return c.Endpoint == "" || c.Token == ""
}

// Connect opens the connection the settings describe.
func (c *Config) Connect(opts ...Option) (*Connection, error) {
	if c.IsLocal() {
		return LocalConnection(opts...), nil
	}
	var proxy *string
	if c.Proxy != "" {
		p := c.Proxy
		proxy = &p
	}
	return RemoteConnection(c.Endpoint, c.Token, proxy, opts...)
}
