// Package manifest records what went into and came out of one distribution
// entry. The manifest carries no timestamps so identical inputs produce a
// byte-identical file.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// FileName is the manifest file written into every entry directory.
const FileName = "BUILD_MANIFEST.json"

// SchemaVersion is bumped on incompatible layout changes.
const SchemaVersion = 1

// BuildManifest is the complete record of one distribution entry.
type BuildManifest struct {
	Schema  int    `json:"schema"`
	Product string `json:"product"`
	Entry   string `json:"entry"`
	Target  Target `json:"target"`
	Inputs  Inputs `json:"inputs"`
	Outputs Output `json:"outputs"`
}

// Target describes the plan the entry was built from.
type Target struct {
	Platform         string   `json:"platform"`
	Arches           []string `json:"arches"`
	Universal        bool     `json:"universal"`
	Variant          string   `json:"variant"`
	EffectiveVariant string   `json:"effective_variant"`
	CRT              string   `json:"crt"`
	Config           string   `json:"config"`
	Unicode          string   `json:"unicode"`
	MinOS            string   `json:"min_os,omitempty"`
}

// Inputs captures the source and configuration inputs.
type Inputs struct {
	Source RepoInput   `json:"source"`
	Deps   []RepoInput `json:"deps,omitempty"`
	// ArgsHash is the combined hash of the rendered GN args of every arch.
	ArgsHash string       `json:"args_hash"`
	Patches  []PatchInput `json:"patches,omitempty"`
}

// RepoInput is one synchronized repository.
type RepoInput struct {
	Name     string `json:"name"`
	URL      string `json:"url,omitempty"`
	Revision string `json:"revision,omitempty"`
	Commit   string `json:"commit"`
}

// Patch states recorded in the manifest. A patch applied by this run and
// one found already applied are both present.
const (
	PatchPresent = "present"
	PatchFailed  = "failed"
)

// PatchInput identifies one patch of the source tree by name and body
// digest, with whether it is in the tree.
type PatchInput struct {
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
	State  string `json:"state"`
}

// Output lists the produced files.
type Output struct {
	Libraries []Artifact `json:"libraries"`
	Omitted   []Omission `json:"omitted,omitempty"`
}

// Artifact is one library file relative to the entry directory.
type Artifact struct {
	Library string `json:"library"`
	Arch    string `json:"arch,omitempty"`
	Path    string `json:"path"`
	SHA256  string `json:"sha256"`
	Size    int64  `json:"size"`
}

// Omission is an expected library the platform does not produce.
type Omission struct {
	Library string `json:"library"`
	Reason  string `json:"reason,omitempty"`
}

// Normalize sorts outputs so serialization does not depend on build order.
func (m *BuildManifest) Normalize() {
	sort.Slice(m.Outputs.Libraries, func(i, j int) bool {
		a, b := m.Outputs.Libraries[i], m.Outputs.Libraries[j]
		if a.Library != b.Library {
			return a.Library < b.Library
		}
		return a.Arch < b.Arch
	})
	sort.Slice(m.Outputs.Omitted, func(i, j int) bool {
		return m.Outputs.Omitted[i].Library < m.Outputs.Omitted[j].Library
	})
}

// ToJSON serializes the manifest to indented JSON with a trailing newline.
func (m *BuildManifest) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// FromJSON deserializes a manifest from JSON.
func FromJSON(data []byte) (*BuildManifest, error) {
	var m BuildManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return &m, nil
}

// Hash computes a deterministic hash of the manifest's target and inputs.
// Two entries with equal hashes were built from identical inputs.
func (m *BuildManifest) Hash() (string, error) {
	hashInput := struct {
		Product string `json:"product"`
		Target  Target `json:"target"`
		Inputs  Inputs `json:"inputs"`
	}{m.Product, m.Target, m.Inputs}

	data, err := json.Marshal(hashInput)
	if err != nil {
		return "", fmt.Errorf("marshal for hash: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Write normalizes m and writes it into dir through a temp file and rename.
func (m *BuildManifest) Write(dir string) error {
	m.Normalize()
	data, err := m.ToJSON()
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".manifest-*")
	if err != nil {
		return fmt.Errorf("create manifest temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close manifest: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("chmod manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, FileName)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename manifest: %w", err)
	}
	return nil
}

// Read loads the manifest from an entry directory.
func Read(dir string) (*BuildManifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}
	return FromJSON(data)
}

// HashFile returns the hex sha256 and size of the file at path.
func HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
