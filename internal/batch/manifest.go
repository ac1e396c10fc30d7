// internal/batch/manifest.go - Task lists from manifests and directories
package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/valpere/wgs_correction/internal"
	"github.com/valpere/wgs_correction/internal/dataset"
)

// Manifest lists the datasets of a batch job
//
//	kind: gd
//	concurrency: 8
//	jobs:
//	  - input: data/roads.shp
//	    output: out/roads.shp
//	  - input: data/poi.geojson
//	    output: out/poi.geojson
//	    kind: bd
type Manifest struct {
	Kind        string          `yaml:"kind"`
	Concurrency int             `yaml:"concurrency"`
	FailOnError *bool           `yaml:"fail_on_error"`
	Jobs        []ManifestEntry `yaml:"jobs"`

	// directory relative paths are resolved against
	dir string
}

// ManifestEntry is one input/output pair of a manifest
type ManifestEntry struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
	Kind   string `yaml:"kind"`
}

// LoadManifest reads a YAML manifest
func LoadManifest(filename string) (*Manifest, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, internal.NewError(internal.ErrorCodeNotFound, fmt.Sprintf("manifest not found: %s", filename), err)
		}
		return nil, internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("failed to read manifest: %s", filename), err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, internal.NewError(internal.ErrorCodeConfig, fmt.Sprintf("invalid manifest: %s", filename), err)
	}
	if len(m.Jobs) == 0 {
		return nil, internal.NewError(internal.ErrorCodeValidation, fmt.Sprintf("manifest %s lists no jobs", filename), nil)
	}
	m.dir = filepath.Dir(filename)
	return &m, nil
}

// Tasks converts the manifest entries into tasks. Entries without a kind use
// the manifest kind, then defaultKind.
func (m *Manifest) Tasks(defaultKind string) ([]*Task, error) {
	tasks := make([]*Task, 0, len(m.Jobs))
	for i, entry := range m.Jobs {
		if entry.Input == "" || entry.Output == "" {
			return nil, internal.NewError(internal.ErrorCodeValidation,
				fmt.Sprintf("manifest job %d needs both input and output", i+1), nil)
		}

		kind := entry.Kind
		if kind == "" {
			kind = m.Kind
		}
		if kind == "" {
			kind = defaultKind
		}

		tasks = append(tasks, &Task{
			ID:     fmt.Sprintf("task-%d", i+1),
			Input:  m.resolve(entry.Input),
			Output: m.resolve(entry.Output),
			Kind:   kind,
		})
	}
	return tasks, nil
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) || m.dir == "" {
		return p
	}
	return filepath.Join(m.dir, p)
}

// Discover walks inputDir for datasets whose file name matches one of the
// patterns and mirrors each relative path under outputDir
func Discover(inputDir, outputDir string, patterns []string, kind string) ([]*Task, error) {
	info, err := os.Stat(inputDir)
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeNotFound, fmt.Sprintf("input directory not found: %s", inputDir), err)
	}
	if !info.IsDir() {
		return nil, internal.NewError(internal.ErrorCodeValidation, fmt.Sprintf("not a directory: %s", inputDir), nil)
	}

	absOutput, _ := filepath.Abs(outputDir)

	var tasks []*Task
	err = filepath.WalkDir(inputDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if abs, _ := filepath.Abs(p); p != inputDir && abs == absOutput {
				return filepath.SkipDir
			}
			return nil
		}
		if !matchesAny(d.Name(), patterns) || !dataset.IsDataset(p) {
			return nil
		}

		rel, err := filepath.Rel(inputDir, p)
		if err != nil {
			return err
		}
		tasks = append(tasks, &Task{
			ID:     fmt.Sprintf("task-%d", len(tasks)+1),
			Input:  p,
			Output: filepath.Join(outputDir, rel),
			Kind:   kind,
		})
		return nil
	})
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("failed to scan %s", inputDir), err)
	}
	return tasks, nil
}

func matchesAny(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range patterns {
		if ok, _ := path.Match(strings.ToLower(pattern), lower); ok {
			return true
		}
	}
	return false
}
