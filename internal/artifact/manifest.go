package artifact

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"
)

// ManifestName is the object key and local file name of the hash manifest.
const ManifestName = "version.json"

// Manifest maps an artifact base name to its expected digest.
type Manifest map[string]digest.Digest

// ParseManifest decodes a JSON object of base name to hex SHA-256. Values that
// already carry an algorithm prefix ("sha256:...") are kept as is.
func ParseManifest(data []byte) (Manifest, error) {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	m := make(Manifest, len(raw))
	for k, v := range raw {
		v = strings.TrimSpace(v)
		if strings.Contains(v, ":") {
			m[k] = digest.Digest(v)
			continue
		}
		m[k] = digest.NewDigestFromEncoded(digest.SHA256, strings.ToLower(v))
	}
	return m, nil
}

// BaseName returns the text before the first '.' of name.
func BaseName(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", newError(ErrInvalidArtifactName, name, nil)
	}
	base, _, _ := strings.Cut(name, ".")
	if base == "" {
		return "", newError(ErrInvalidArtifactName, name, nil)
	}
	return base, nil
}
