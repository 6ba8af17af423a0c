package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/corpora/internal/foundation/errors"
)

const sampleHeader = `# corpora configuration.
# ${VAR} references are expanded from the environment and .env files.
# Command-line flags override these values.
`

// Init writes an example configuration to path. An existing file is only
// replaced when force is set.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", path).Build()
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ferrors.WrapError(err, ferrors.CategoryIO, "failed to stat configuration file").Build()
	}

	sample := Default()
	sample.Site.Title = "My Corpus"
	sample.Site.BaseURL = "https://example.com"
	sample.Site.Description = "Notes and articles"
	sample.History.Path = ".corpora-history.db"
	sample.Watch.Interval = 0

	data, err := yaml.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryIO, "failed to create configuration directory").Build()
		}
	}
	if err := os.WriteFile(path, append([]byte(sampleHeader), data...), 0o600); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryIO, "failed to write configuration file").
			WithContext("path", path).Build()
	}
	return nil
}
