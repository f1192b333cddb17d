package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var (
	ErrSceneNotFound = errors.New("scene file not found")
	ErrSceneName     = errors.New("scene names must be a plain .geojson or .json file name")
)

// SceneFile describes a GeoJSON file in the library.
type SceneFile struct {
	Name     string    `json:"name" doc:"File name" example:"park.geojson"`
	Size     string    `json:"size" doc:"Human readable size" example:"12.4 KB"`
	Modified time.Time `json:"modified" doc:"Last modification time"`
}

// Library keeps scene files under <dataDir>/scenes.
type Library struct {
	dir string
}

// NewLibrary creates a library rooted in dataDir.
func NewLibrary(dataDir string) *Library {
	return &Library{dir: filepath.Join(dataDir, "scenes")}
}

// Dir returns the path to the scenes directory.
func (l *Library) Dir() string {
	return l.dir
}

// List returns the scene files, sorted by name. A missing directory is an
// empty library.
func (l *Library) List() ([]SceneFile, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SceneFile{}, nil
		}
		return nil, err
	}

	files := []SceneFile{}
	for _, entry := range entries {
		if entry.IsDir() || !sceneExt(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, SceneFile{
			Name:     entry.Name(),
			Size:     formatSize(info.Size()),
			Modified: info.ModTime().UTC(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Read returns the contents of the named scene file.
func (l *Library) Read(name string) ([]byte, error) {
	path, err := l.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrSceneNotFound, name)
	}
	return data, err
}

// Write stores data under name, replacing any existing file.
func (l *Library) Write(name string, data []byte) (SceneFile, error) {
	path, err := l.path(name)
	if err != nil {
		return SceneFile{}, err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return SceneFile{}, err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return SceneFile{}, err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return SceneFile{}, err
	}
	return SceneFile{
		Name:     name,
		Size:     formatSize(int64(len(data))),
		Modified: time.Now().UTC(),
	}, nil
}

// path resolves name inside the library, rejecting anything that is not a
// bare scene file name.
func (l *Library) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || !sceneExt(name) {
		return "", fmt.Errorf("%w: %q", ErrSceneName, name)
	}
	return filepath.Join(l.dir, name), nil
}

func sceneExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".geojson", ".json":
		return true
	}
	return false
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
