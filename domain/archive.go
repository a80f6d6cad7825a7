package domain

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	// ConfigCopyBase is the base name of the configuration copy kept at the
	// archive root.
	ConfigCopyBase = "deploy"

	// ManifestFilename is the archive metadata file kept at the archive root.
	ManifestFilename = "archive.yml"
)

// ConfigCopyExtensions are the extensions a configuration copy may carry.
var ConfigCopyExtensions = []string{".cfg", ".yml", ".yaml"}

// Archive is the on-disk layout of an archive: <root>/<project>.
type Archive struct {
	Root    string
	Project string
}

func NewArchive(root, project string) Archive {
	return Archive{Root: root, Project: project}
}

// Dir is the archive directory.
func (a Archive) Dir() string {
	return filepath.Join(a.Root, a.Project)
}

// ComponentDir is the subdirectory holding component c.
func (a Archive) ComponentDir(c Component) string {
	return ComponentDir(a.Dir(), c)
}

// ComponentDir is the subdirectory holding component c in archive directory dir.
func ComponentDir(dir string, c Component) string {
	return filepath.Join(dir, c.String())
}

// ConfigCopyName returns the file name under which the configuration file
// at configPath is copied into an archive. YAML files keep their extension
// so that they are parsed the same way on extraction.
func ConfigCopyName(configPath string) string {
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yml", ".yaml":
		return ConfigCopyBase + strings.ToLower(filepath.Ext(configPath))
	}
	return ConfigCopyBase + ".cfg"
}

// Manifest records where and when an archive was produced.
type Manifest struct {
	Project      string    `yaml:"project"`
	Created      time.Time `yaml:"created"`
	Hostname     string    `yaml:"hostname"`
	SourceConfig string    `yaml:"source_config"`
}

// Source is an archive made available as a plain directory.
type Source struct {
	Dir      string
	Manifest *Manifest

	cleanup func() error
}

// NewSource returns a source rooted at dir. cleanup, if not nil, is called
// by Close.
func NewSource(dir string, manifest *Manifest, cleanup func() error) Source {
	return Source{Dir: dir, Manifest: manifest, cleanup: cleanup}
}

// Close releases anything that had to be unpacked to expose the directory.
func (s Source) Close() error {
	if s.cleanup == nil {
		return nil
	}
	return s.cleanup()
}
