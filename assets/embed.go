// Package assets embeds the example hero rig: a glTF skeleton with clips, its
// state machine, a driver script, a ragdoll definition and an engine config.
package assets

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

//go:embed *.gltf *.yaml *.tengo
var assetsFS embed.FS

// Names of the embedded example files.
const (
	Model        = "hero.gltf"
	StateMachine = "hero.yaml"
	Script       = "drive.tengo"
	Ragdoll      = "ragdoll.yaml"
	EngineConfig = "engine.yaml"
)

// LoadFile loads an embedded asset by assets-relative path.
func LoadFile(path string) ([]byte, error) {
	return assetsFS.ReadFile(cleanAssetPath(path))
}

// Extract writes every embedded asset into dir so tools that work on paths
// (and the file watcher) can use them.
func Extract(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("assets: create %s: %w", dir, err)
	}
	return fs.WalkDir(assetsFS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		b, err := assetsFS.ReadFile(path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, path), b, 0o644); err != nil {
			return fmt.Errorf("assets: extract %s: %w", path, err)
		}
		return nil
	})
}

func cleanAssetPath(path string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		s := filepath.ToSlash(path)
		if idx := strings.LastIndex(s, "/assets/"); idx >= 0 {
			return s[idx+len("/assets/"):]
		}
		return filepath.Base(path)
	}
	s := filepath.ToSlash(path)
	if strings.HasPrefix(s, "assets/") {
		return strings.TrimPrefix(s, "assets/")
	}
	return s
}
