package scan

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"path/filepath"
	"strings"

	"github.com/yourorg/reuse-assistant/internal/model"
)

// askalono crawl prints "License: <id> (<kind>)" and "Score: <n>".
const (
	licenseOffset = len("License: ")
	scoreOffset   = len("Score: ")
)

// maxLineLength caps how much of a single line is kept. Longer lines make
// their group malformed.
const maxLineLength = 1024 * 1024

// MalformedLineError reports a three-line group that could not be parsed.
// The group is consumed, so decoding can continue with the next one.
type MalformedLineError struct {
	Line   int
	Text   string
	Reason string
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("malformed scan output at line %d: %s", e.Line, e.Reason)
}

// Decoder reads scanner results in groups of three lines:
// the matched file path, the license line and the score line.
type Decoder struct {
	br   *bufio.Reader
	root string
	line int
	err  error
}

// NewDecoder returns a decoder that strips root from reported paths.
func NewDecoder(r io.Reader, root string) *Decoder {
	return &Decoder{br: bufio.NewReaderSize(r, 64*1024), root: normalizeRoot(root)}
}

func normalizeRoot(root string) string {
	return strings.TrimRight(filepath.ToSlash(root), "/")
}

// Next returns the next entry. It returns io.EOF once the input is exhausted
// and a *MalformedLineError for a group that was skipped.
func (d *Decoder) Next() (model.ScanEntry, error) {
	if d.err != nil {
		return model.ScanEntry{}, d.err
	}
	var lines [3]string
	start := d.line + 1
	overlong := -1
	for i := range lines {
		line, truncated, err := d.readLine()
		if err == io.EOF {
			d.err = io.EOF
			if i == 0 {
				return model.ScanEntry{}, io.EOF
			}
			return model.ScanEntry{}, &MalformedLineError{
				Line:   start,
				Text:   lines[0],
				Reason: fmt.Sprintf("incomplete group, got %d of 3 lines", i),
			}
		}
		if err != nil {
			d.err = err
			return model.ScanEntry{}, err
		}
		d.line++
		lines[i] = line
		if truncated && overlong < 0 {
			overlong = i
		}
	}
	if overlong >= 0 {
		return model.ScanEntry{}, &MalformedLineError{
			Line:   start + overlong,
			Text:   lines[overlong][:min(len(lines[overlong]), 80)],
			Reason: fmt.Sprintf("line longer than %d bytes", maxLineLength),
		}
	}
	return parseGroup(d.root, start, lines)
}

// readLine returns the next line without its terminator. Bytes past
// maxLineLength are dropped and reported through truncated.
func (d *Decoder) readLine() (line string, truncated bool, err error) {
	var buf []byte
	for {
		frag, rerr := d.br.ReadSlice('\n')
		if !truncated && len(buf)+len(frag) <= maxLineLength {
			buf = append(buf, frag...)
		} else {
			truncated = true
		}
		switch {
		case rerr == bufio.ErrBufferFull:
			continue
		case rerr == io.EOF:
			if len(buf) == 0 && !truncated {
				return "", false, io.EOF
			}
		case rerr != nil:
			return "", false, rerr
		}
		line = strings.TrimSuffix(string(buf), "\n")
		return strings.TrimSuffix(line, "\r"), truncated, nil
	}
}

func parseGroup(root string, start int, lines [3]string) (model.ScanEntry, error) {
	dir, err := directoryOf(root, lines[0])
	if err != nil {
		return model.ScanEntry{}, &MalformedLineError{Line: start, Text: lines[0], Reason: err.Error()}
	}

	ll := lines[1]
	if len(ll) < licenseOffset {
		return model.ScanEntry{}, &MalformedLineError{Line: start + 1, Text: ll, Reason: "license line too short"}
	}
	sp := strings.IndexByte(ll[licenseOffset:], ' ')
	if sp < 0 {
		return model.ScanEntry{}, &MalformedLineError{Line: start + 1, Text: ll, Reason: "no space after license identifier"}
	}
	if sp == 0 {
		return model.ScanEntry{}, &MalformedLineError{Line: start + 1, Text: ll, Reason: "empty license identifier"}
	}

	sl := lines[2]
	if len(sl) <= scoreOffset {
		return model.ScanEntry{}, &MalformedLineError{Line: start + 2, Text: sl, Reason: "missing score"}
	}

	return model.ScanEntry{
		Directory: dir,
		License:   ll[licenseOffset : licenseOffset+sp],
		Score:     sl[scoreOffset:],
		Line:      start,
	}, nil
}

// directoryOf turns an absolute file path into the repository-relative
// directory holding it, "." for files at the root.
func directoryOf(root, path string) (string, error) {
	path = filepath.ToSlash(path)
	if !strings.HasPrefix(path, root) {
		return "", fmt.Errorf("path %q is outside repository root", path)
	}
	slash := strings.LastIndex(path, "/")
	if slash < len(root) || path[len(root)] != '/' {
		return "", fmt.Errorf("path %q is outside repository root", path)
	}
	if slash == len(root) {
		return model.RootDirectory, nil
	}
	return path[len(root)+1 : slash], nil
}

// Entries decodes r lazily. Malformed groups are yielded as
// *MalformedLineError values; iteration stops at EOF or a read error.
func Entries(r io.Reader, root string) iter.Seq2[model.ScanEntry, error] {
	return func(yield func(model.ScanEntry, error) bool) {
		d := NewDecoder(r, root)
		for {
			e, err := d.Next()
			if err == io.EOF {
				return
			}
			if !yield(e, err) {
				return
			}
			if err != nil && !isMalformed(err) {
				return
			}
		}
	}
}

func isMalformed(err error) bool {
	var me *MalformedLineError
	return errors.As(err, &me)
}
