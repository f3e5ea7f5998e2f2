package worldmanager

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"go.viam.com/grasping/spatialmath"
)

// Model is a recognized object to be kept in the planning scene.
type Model struct {
	Name string `json:"name"`
	// Pose is in the planning frame.
	Pose spatialmath.PoseMessage `json:"pose"`
	// Filename is the mesh of the model. Empty means <mesh_dir>/<name>.ply.
	Filename string `json:"filename,omitempty"`
}

// A ModelSource supplies the list of recognized models.
type ModelSource interface {
	// Refresh re-detects the models and returns the new list.
	Refresh(ctx context.Context) ([]Model, error)
	// Read returns the stored model list without re-detecting.
	Read(ctx context.Context) ([]Model, error)
}

// ModelListFile is the on-disk format of a model list.
type ModelListFile struct {
	MeshDir string  `json:"mesh_dir,omitempty"`
	Models  []Model `json:"models"`
}

// FileSource is a ModelSource backed by a JSON model list file. There is no detector behind it,
// so Refresh re-reads the file like Read does.
type FileSource struct {
	path string
}

// NewFileSource returns a ModelSource reading path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path is the model list file.
func (fs *FileSource) Path() string {
	return fs.path
}

// Refresh re-reads the model list file.
func (fs *FileSource) Refresh(ctx context.Context) ([]Model, error) {
	return fs.Read(ctx)
}

// Read reads the model list file. Model names lose any surrounding slashes and relative mesh
// filenames are resolved against mesh_dir, which is itself relative to the list file.
func (fs *FileSource) Read(ctx context.Context) ([]Model, error) {
	//nolint:gosec
	data, err := os.ReadFile(fs.path)
	if err != nil {
		return nil, errors.Wrap(err, "reading model list")
	}
	var list ModelListFile
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, errors.Wrapf(err, "parsing model list %q", fs.path)
	}
	meshDir := list.MeshDir
	if !filepath.IsAbs(meshDir) {
		meshDir = filepath.Join(filepath.Dir(fs.path), meshDir)
	}
	models := make([]Model, 0, len(list.Models))
	for _, m := range list.Models {
		m.Name = strings.Trim(m.Name, "/")
		if m.Filename == "" {
			m.Filename = m.Name + ".ply"
		}
		if !filepath.IsAbs(m.Filename) {
			m.Filename = filepath.Join(meshDir, m.Filename)
		}
		models = append(models, m)
	}
	return models, nil
}
