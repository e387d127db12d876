package harness

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
)

// MissingDocumentError is returned when a scenario references a scene or
// storyboard file that does not exist.
type MissingDocumentError struct {
	Field    string
	Path     string
	Resolved string
}

func (e *MissingDocumentError) Error() string {
	return fmt.Sprintf("%s file %q does not exist (resolved to: %s)", e.Field, e.Path, e.Resolved)
}

// FindScenarios returns the scenario files under root, sorted. A file path
// is returned as is. Directories are walked for *.yaml and *.yml files.
func FindScenarios(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			paths = append(paths, path)
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find scenarios: %w", err)
	}
	slices.Sort(paths)
	return paths, nil
}
