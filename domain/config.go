package domain

import (
	"path/filepath"
	"strings"

	"github.com/juju/errors"
)

// DefaultSection holds the keys inherited by every other section.
const DefaultSection = "DEFAULT"

// Section is the key/value content of one configuration section.
type Section map[string]string

// Get returns the value of key and whether it is set.
func (s Section) Get(key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}

// String returns the value of key, or fallback when it is unset or empty.
func (s Section) String(key, fallback string) string {
	if v := strings.TrimSpace(s[key]); v != "" {
		return v
	}
	return fallback
}

// Required returns the value of key or a MissingField error.
func (s Section) Required(key string) (string, error) {
	v := strings.TrimSpace(s[key])
	if v == "" {
		return "", errors.WithType(errors.Errorf("missing %q", key), MissingField)
	}
	return v, nil
}

// List splits the value of key on commas and whitespace.
func (s Section) List(key string) []string {
	return strings.FieldsFunc(s[key], func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}

// Config is a parsed project configuration file.
type Config struct {
	// Path of the file the configuration was read from.
	Path     string
	Sections map[string]Section
}

// Dir returns the directory containing the configuration file.
func (c Config) Dir() string {
	return filepath.Dir(c.Path)
}

// Defaults returns a copy of the DEFAULT section.
func (c Config) Defaults() Section {
	merged := Section{}
	for k, v := range c.Sections[DefaultSection] {
		merged[k] = v
	}
	return merged
}

// Section returns the named section with the DEFAULT keys merged in. Keys
// set in the section itself take precedence.
func (c Config) Section(name string) (Section, error) {
	if name == DefaultSection {
		return c.Defaults(), nil
	}
	own, ok := c.Sections[name]
	if !ok {
		return nil, errors.WithType(errors.Errorf("%s: no section %q", c.Path, name), ConfigError)
	}
	merged := c.Defaults()
	for k, v := range own {
		merged[k] = v
	}
	return merged, nil
}

// Project returns DEFAULT.project, the top-level name of the archive.
func (c Config) Project() (string, error) {
	project, err := c.Defaults().Required("project")
	if err != nil {
		return "", errors.Annotatef(err, "%s: section %s", c.Path, DefaultSection)
	}
	if strings.ContainsAny(project, `/\`) || project == "." || project == ".." {
		return "", errors.WithType(errors.Errorf("%s: invalid project name %q", c.Path, project), ConfigError)
	}
	return project, nil
}
