// Package config reads project configuration files into sections.
//
// Files ending in .yml or .yaml are YAML documents mapping section names
// to key/value mappings; top-level scalars belong to DEFAULT. Any other
// file is INI, with DEFAULT inheritance and %(key)s interpolation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/juju/errors"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"webup/deploy/archive"
	"webup/deploy/domain"
)

// Parser reads configuration files. It satisfies actions.ConfigLoader.
type Parser struct{}

func (Parser) Parse(path string) (domain.Config, error) {
	return Parse(path)
}

func (Parser) ParseArchive(path string) (domain.Config, error) {
	return ParseArchive(path)
}

// Parse reads the configuration file at path.
func Parse(path string) (domain.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Config{}, errors.WithType(errors.Annotatef(err, "unable to read config file"), domain.ConfigError)
	}
	return parseBytes(path, data)
}

// ParseArchive reads the configuration copy stored at the root of an
// archive. path is either the archive directory or a packed archive.
func ParseArchive(path string) (domain.Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.Config{}, errors.WithType(errors.Annotatef(err, "unable to open archive"), domain.ConfigError)
	}

	if info.IsDir() {
		for _, ext := range domain.ConfigCopyExtensions {
			candidate := filepath.Join(path, domain.ConfigCopyBase+ext)
			if _, err := os.Stat(candidate); err == nil {
				return Parse(candidate)
			}
		}
		return domain.Config{}, errors.WithType(errors.Errorf("%s: no configuration copy found", path), domain.ConfigError)
	}

	name, data, err := archive.ReadConfigCopy(path, archive.KeyFromEnv())
	if err != nil {
		return domain.Config{}, errors.WithType(errors.Annotatef(err, "%s", path), domain.ConfigError)
	}
	return parseBytes(filepath.Join(path, name), data)
}

func parseBytes(path string, data []byte) (domain.Config, error) {
	var (
		sections map[string]domain.Section
		err      error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		sections, err = parseYAML(data)
	default:
		sections, err = parseINI(data)
	}
	if err != nil {
		return domain.Config{}, errors.WithType(errors.Annotatef(err, "unable to parse the config file %s", path), domain.ConfigError)
	}
	if _, ok := sections[domain.DefaultSection]; !ok {
		sections[domain.DefaultSection] = domain.Section{}
	}

	return domain.Config{Path: path, Sections: sections}, nil
}

func parseINI(data []byte) (map[string]domain.Section, error) {
	file, err := ini.LoadSources(ini.LoadOptions{}, data)
	if err != nil {
		return nil, err
	}

	sections := map[string]domain.Section{}
	for _, s := range file.Sections() {
		section := domain.Section{}
		for _, k := range s.Keys() {
			section[k.Name()] = k.String()
		}
		sections[s.Name()] = section
	}
	return sections, nil
}

func parseYAML(data []byte) (map[string]domain.Section, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	sections := map[string]domain.Section{domain.DefaultSection: {}}
	for name, value := range doc {
		switch v := value.(type) {
		case map[string]interface{}:
			section := sections[name]
			if section == nil {
				section = domain.Section{}
				sections[name] = section
			}
			for key, raw := range v {
				s, err := scalar(raw)
				if err != nil {
					return nil, errors.Annotatef(err, "%s.%s", name, key)
				}
				section[key] = s
			}
		case nil:
			if _, ok := sections[name]; !ok {
				sections[name] = domain.Section{}
			}
		default:
			s, err := scalar(v)
			if err != nil {
				return nil, errors.Annotatef(err, "%s", name)
			}
			sections[domain.DefaultSection][name] = s
		}
	}
	return sections, nil
}

// scalar flattens a YAML value. Sequences are joined with commas so that
// Section.List reads them back.
func scalar(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case []interface{}:
		items := make([]string, 0, len(v))
		for _, item := range v {
			s, err := scalar(item)
			if err != nil {
				return "", err
			}
			items = append(items, s)
		}
		return strings.Join(items, ","), nil
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", errors.Errorf("nested mapping (keys %s) is not a value", strings.Join(keys, ", "))
	default:
		return fmt.Sprint(v), nil
	}
}
