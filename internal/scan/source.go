package scan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/reuse-assistant/internal/model"
)

// Source produces license matches for a checked-out repository.
type Source interface {
	Scan(ctx context.Context, root string) (iter.Seq2[model.ScanEntry, error], error)
}

// Askalono runs "askalono crawl" over a directory tree.
type Askalono struct {
	Path string
	Log  logrus.FieldLogger
}

func NewAskalono(path string, log logrus.FieldLogger) *Askalono {
	return &Askalono{Path: path, Log: log}
}

// Scan runs the crawl and decodes its stdout. askalono exits non-zero when
// single files cannot be read; whatever it printed up to then is still used.
func (a *Askalono) Scan(ctx context.Context, root string) (iter.Seq2[model.ScanEntry, error], error) {
	cmd := exec.CommandContext(ctx, a.Path, "crawl", root)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil && len(bytes.TrimSpace(out)) > 0 {
			if a.Log != nil {
				a.Log.WithError(err).WithField("stderr", msg).Warn("askalono crawl exited with an error, using the results it printed")
			}
			return Entries(bytes.NewReader(out), root), nil
		}
		if msg != "" {
			return nil, fmt.Errorf("askalono crawl: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("askalono crawl: %w", err)
	}
	return Entries(bytes.NewReader(out), root), nil
}

// Version returns the first line of "askalono --version".
func (a *Askalono) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, a.Path, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("askalono --version: %w", err)
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return line, nil
}

// Static replays previously captured scanner output.
type Static struct {
	Output string
}

func (s Static) Scan(_ context.Context, root string) (iter.Seq2[model.ScanEntry, error], error) {
	return Entries(strings.NewReader(s.Output), root), nil
}
