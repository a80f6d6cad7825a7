package archive

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
	"gopkg.in/yaml.v3"

	"webup/deploy/domain"
)

// WriteManifest stores m at the root of the archive directory dir.
func WriteManifest(dir string, m domain.Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(utils.AtomicWriteFile(filepath.Join(dir, domain.ManifestFilename), data, 0644))
}

// ReadManifest loads the manifest of the archive directory dir. It returns
// nil without error when the archive has none.
func ReadManifest(dir string) (*domain.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, domain.ManifestFilename))
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Trace(err)
	}

	var m domain.Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Annotatef(err, "parsing %s", domain.ManifestFilename)
	}
	return &m, nil
}
