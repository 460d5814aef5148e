// Package manifest renders REUSE dep5 files in the Debian machine-readable
// copyright format 1.0.
package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/yourorg/reuse-assistant/internal/model"
)

const FormatURL = "https://www.debian.org/doc/packaging-manuals/copyright-format/1.0/"

// Path is the manifest location relative to the repository root.
const Path = ".reuse/dep5"

const vendorPrefix = "vendor/"

// Header returns the leading paragraph, including its terminating blank line.
func Header(meta model.ManifestMetadata) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Format: %s\n", FormatURL)
	fmt.Fprintf(&sb, "Upstream-Name: %s\n", meta.Repository)
	fmt.Fprintf(&sb, "Upstream-Contact: %s\n", meta.UpstreamContact)
	fmt.Fprintf(&sb, "Source: https://github.com/%s/%s\n", meta.Organization, meta.Repository)
	sb.WriteString("\n")
	return sb.String()
}

// ProjectName is the attribution used in a directory's copyright line:
// the path below vendor/ for vendored code, the last path element otherwise.
func ProjectName(dir string) string {
	if rest, ok := strings.CutPrefix(dir, vendorPrefix); ok {
		return rest
	}
	return dir[strings.LastIndex(dir, "/")+1:]
}

// Blocks builds one block per license map entry, in map order.
func Blocks(licenses *model.LicenseMap, meta model.ManifestMetadata) []model.ManifestBlock {
	blocks := make([]model.ManifestBlock, 0, licenses.Len())
	for dir, license := range licenses.All() {
		b := model.ManifestBlock{License: license}
		if dir == model.RootDirectory {
			b.Files = "*"
			b.Copyright = fmt.Sprintf("%d %s and %s contributors.", meta.Year, meta.CopyrightOwner, meta.Repository)
		} else {
			b.Files = dir + "/*"
			b.Copyright = fmt.Sprintf("%d %s contributors.", meta.Year, ProjectName(dir))
		}
		blocks = append(blocks, b)
	}
	return blocks
}

// Render writes the header followed by every block to w.
func Render(w io.Writer, licenses *model.LicenseMap, meta model.ManifestMetadata) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(Header(meta)); err != nil {
		return err
	}
	for _, b := range Blocks(licenses, meta) {
		if _, err := fmt.Fprintf(bw, "Files: %s\nCopyright: %s\nLicense: %s\n\n", b.Files, b.Copyright, b.License); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Bytes renders the manifest into memory.
func Bytes(licenses *model.LicenseMap, meta model.ManifestMetadata) []byte {
	var buf bytes.Buffer
	// Writes to a bytes.Buffer never fail, so Render cannot return an error here.
	_ = Render(&buf, licenses, meta)
	return buf.Bytes()
}
