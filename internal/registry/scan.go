package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fcsrv/internal/common/fsutil"
	"fcsrv/internal/variant"
)

// LocalArtifact is one model file present in the model directory.
type LocalArtifact struct {
	Name     string   `json:"name"`
	Path     string   `json:"path"`
	Size     int64    `json:"size"`
	Variants []string `json:"variants,omitempty"`
}

// ScanDir lists *.onnx files in dir and the variants each one serves.
// Files no variant uses are listed with no variants.
func ScanDir(dir string) ([]LocalArtifact, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	users := variantsByArtifact()
	var out []LocalArtifact
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".onnx") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		out = append(out, LocalArtifact{
			Name:     name,
			Path:     filepath.Join(abs, name),
			Size:     info.Size(),
			Variants: users[name],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Artifacts returns the distinct artifact names used by vs, in first-use order.
func Artifacts(vs ...variant.Variant) []string {
	seen := make(map[string]bool, len(vs))
	var out []string
	for _, v := range vs {
		a := v.Artifact()
		if seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

func variantsByArtifact() map[string][]string {
	m := make(map[string][]string)
	for _, v := range variant.All() {
		m[v.Artifact()] = append(m[v.Artifact()], v.String())
	}
	return m
}
