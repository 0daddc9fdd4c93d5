package sensor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// configFilePermissions is the permission mode for the sensor config file.
const configFilePermissions = 0600

// configFile is the on-disk shape: {"sensors": [...]}.
type configFile struct {
	Sensors []Config `json:"sensors"`
}

// FileRepository persists sensor configurations to a JSON file.
//
// The file format matches what the platform's setup tooling writes:
//
//	{"sensors": [{"sensor_id", "sensor_type", "inputs", "enabled", "alias"}, ...]}
type FileRepository struct {
	path string
}

// NewFileRepository creates a repository writing to the given path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// Path returns the backing file path.
func (f *FileRepository) Path() string {
	return f.path
}

// Load reads all persisted configurations.
// A missing file is not an error; it returns an empty set.
func (f *FileRepository) Load() ([]Config, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading sensor config: %w", err)
	}

	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing sensor config: %w", err)
	}

	return file.Sensors, nil
}

// Save writes the full configuration set, replacing the previous contents.
// The write goes through a temp file and rename so a crash mid-write cannot
// truncate the config.
func (f *FileRepository) Save(configs []Config) error {
	if configs == nil {
		configs = []Config{}
	}

	data, err := json.MarshalIndent(configFile{Sensors: configs}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sensor config: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, configFilePermissions); err != nil {
		return fmt.Errorf("writing sensor config: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replacing sensor config: %w", err)
	}

	return nil
}
