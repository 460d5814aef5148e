package model

import "iter"

// RootDirectory is the directory key for the repository's top level.
const RootDirectory = "."

// ScanEntry is one license match reported by the scanner.
type ScanEntry struct {
	Directory string `json:"directory"`
	License   string `json:"license"`
	// Score is the raw score text; it is only logged.
	Score string `json:"score"`
	// Line is the 1-based line of the match's path line in the scanner output.
	Line int `json:"line"`
}

// LicenseMap maps repository-relative directories to license identifiers
// and remembers the order in which directories were first seen.
type LicenseMap struct {
	dirs     []string
	licenses map[string]string
}

func NewLicenseMap() *LicenseMap {
	return &LicenseMap{licenses: map[string]string{}}
}

// Add records license for dir unless dir is already present.
// It reports whether the entry was inserted.
func (m *LicenseMap) Add(dir, license string) bool {
	if _, exists := m.licenses[dir]; exists {
		return false
	}
	m.dirs = append(m.dirs, dir)
	m.licenses[dir] = license
	return true
}

func (m *LicenseMap) Get(dir string) (string, bool) {
	if m == nil {
		return "", false
	}
	l, ok := m.licenses[dir]
	return l, ok
}

func (m *LicenseMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.dirs)
}

// Directories returns the keys in first-sighting order.
func (m *LicenseMap) Directories() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.dirs))
	copy(out, m.dirs)
	return out
}

// All iterates directory/license pairs in first-sighting order.
func (m *LicenseMap) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		if m == nil {
			return
		}
		for _, d := range m.dirs {
			if !yield(d, m.licenses[d]) {
				return
			}
		}
	}
}

// Licenses returns the distinct license identifiers in first-sighting order.
func (m *LicenseMap) Licenses() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, l := range m.All() {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// ManifestMetadata identifies the repository a manifest is rendered for.
type ManifestMetadata struct {
	Organization    string
	Repository      string
	UpstreamContact string
	CopyrightOwner  string
	Year            int
}

// ManifestBlock is one Files/Copyright/License stanza of a dep5 file.
type ManifestBlock struct {
	Files     string
	Copyright string
	License   string
}

type DiagnosticKind string

const (
	DiagMalformedScanLine  DiagnosticKind = "malformed-scan-line"
	DiagDuplicateDirectory DiagnosticKind = "duplicate-directory"
)

// Diagnostic is a non-fatal event raised while parsing scanner output.
type Diagnostic struct {
	Kind      DiagnosticKind `json:"kind"`
	Line      int            `json:"line"`
	Directory string         `json:"directory,omitempty"`
	License   string         `json:"license,omitempty"`
	Message   string         `json:"message"`
}
