package seed

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Manifest describes a seed corpus. It sits next to the corpus file so tools
// can report counts without scanning the whole corpus.
type Manifest struct {
	Version     int       `json:"version"`
	Records     int64     `json:"records"`
	Books       int       `json:"books"`
	Mix         string    `json:"mix,omitempty"`
	Seed        int64     `json:"seed,omitempty"`
	BuiltAt     time.Time `json:"builtAt"`
	Compression string    `json:"compression,omitempty"`
}

// ManifestVersion is the current manifest format version.
const ManifestVersion = 1

// ManifestPath returns the conventional manifest location for a corpus file.
func ManifestPath(corpusPath string) string {
	return corpusPath + ".manifest.json"
}

// WriteManifest writes m next to the corpus at corpusPath.
func WriteManifest(corpusPath string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(ManifestPath(corpusPath), data, 0644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// ReadManifest reads the manifest for the corpus at corpusPath.
func ReadManifest(corpusPath string) (*Manifest, error) {
	data, err := os.ReadFile(ManifestPath(corpusPath))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}
