// Package licenses places canonical license texts under LICENSES/.
package licenses

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Dir is where REUSE expects license texts, relative to the repository root.
const Dir = "LICENSES"

type Downloader interface {
	Download(ctx context.Context, root string, ids []string) error
}

// ReuseTool runs "reuse download --all", which fetches every license the
// repository's REUSE metadata refers to.
type ReuseTool struct {
	Path string
	Log  logrus.FieldLogger
}

func (r *ReuseTool) Available() bool {
	_, err := exec.LookPath(r.Path)
	return err == nil
}

func (r *ReuseTool) Download(ctx context.Context, root string, _ []string) error {
	cmd := exec.CommandContext(ctx, r.Path, "download", "--all")
	cmd.Dir = root
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start reuse: %w", err)
	}
	sc := bufio.NewScanner(stdout)
	for sc.Scan() {
		r.Log.WithField("tool", "reuse").Info(sc.Text())
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("reuse download: %w", err)
	}
	return nil
}

// Auto prefers the reuse tool and falls back to fetching SPDX texts directly
// when the tool is not installed.
type Auto struct {
	Reuse *ReuseTool
	SPDX  *SPDXFetcher
	Log   logrus.FieldLogger
}

func (a *Auto) Download(ctx context.Context, root string, ids []string) error {
	if a.Reuse != nil {
		if a.Reuse.Available() {
			return a.Reuse.Download(ctx, root, ids)
		}
		a.Log.WithField("path", a.Reuse.Path).Warn("reuse tool not found, fetching license texts from SPDX")
	}
	return a.SPDX.Download(ctx, root, ids)
}

// Identifiers splits license expressions into the identifiers that have a
// canonical text, dropping operators and LicenseRef- references.
func Identifiers(expressions []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, expr := range expressions {
		for _, tok := range strings.Fields(expr) {
			tok = strings.Trim(tok, "()")
			tok = strings.TrimSuffix(tok, "+")
			switch {
			case tok == "":
				continue
			case tok == "AND" || tok == "OR" || tok == "WITH":
				continue
			case strings.HasPrefix(tok, "LicenseRef-"), strings.HasPrefix(tok, "DocumentRef-"):
				continue
			}
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			out = append(out, tok)
		}
	}
	return out
}
