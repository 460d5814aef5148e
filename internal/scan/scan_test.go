package scan

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/reuse-assistant/internal/model"
)

func crawl(groups ...[3]string) string {
	var sb strings.Builder
	for _, g := range groups {
		for _, l := range g {
			sb.WriteString(l)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func group(path, license, score string) [3]string {
	return [3]string{path, "License: " + license + " (original text)", "Score: " + score}
}

func TestParse_VendorDirectory(t *testing.T) {
	res, err := Parse(strings.NewReader(crawl(group("/repo/vendor/libfoo/LICENSE", "MIT", "1.000"))), "/repo")
	require.NoError(t, err)

	l, ok := res.Licenses.Get("vendor/libfoo")
	require.True(t, ok)
	assert.Equal(t, "MIT", l)
	assert.Equal(t, 1, res.Licenses.Len())
	assert.Empty(t, res.Diagnostics)
	require.Len(t, res.Accepted, 1)
	assert.Equal(t, "1.000", res.Accepted[0].Score)
}

func TestParse_RootDirectory(t *testing.T) {
	res, err := Parse(strings.NewReader(crawl(group("/repo/LICENSE", "Apache-2.0", "0.987"))), "/repo")
	require.NoError(t, err)

	l, ok := res.Licenses.Get(model.RootDirectory)
	require.True(t, ok)
	assert.Equal(t, "Apache-2.0", l)
}

func TestParse_RootWithTrailingSlash(t *testing.T) {
	res, err := Parse(strings.NewReader(crawl(group("/repo/src/utils/COPYING", "ISC", "0.9"))), "/repo/")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/utils"}, res.Licenses.Directories())
}

func TestParse_DuplicateKeepsFirst(t *testing.T) {
	out := crawl(
		group("/repo/LICENSE", "MIT", "1.000"),
		group("/repo/LICENSE-APACHE", "Apache-2.0", "1.000"),
	)
	res, err := Parse(strings.NewReader(out), "/repo")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Licenses.Len())
	l, _ := res.Licenses.Get(".")
	assert.Equal(t, "MIT", l)

	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	assert.Equal(t, model.DiagDuplicateDirectory, d.Kind)
	assert.Equal(t, ".", d.Directory)
	assert.Equal(t, "Apache-2.0", d.License)
	assert.Equal(t, 4, d.Line)
}

func TestParse_MalformedGroupsAreSkipped(t *testing.T) {
	tests := []struct {
		name  string
		group [3]string
	}{
		{"short license line", [3]string{"/repo/a/LICENSE", "License", "Score: 1.0"}},
		{"no space after id", [3]string{"/repo/a/LICENSE", "License: MIT", "Score: 1.0"}},
		{"empty id", [3]string{"/repo/a/LICENSE", "License:  (x)", "Score: 1.0"}},
		{"missing score", [3]string{"/repo/a/LICENSE", "License: MIT (x)", "Score:"}},
		{"outside root", [3]string{"/elsewhere/a/LICENSE", "License: MIT (x)", "Score: 1.0"}},
		{"sibling of root", [3]string{"/repository/LICENSE", "License: MIT (x)", "Score: 1.0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := crawl(tt.group, group("/repo/b/LICENSE", "BSD-2-Clause", "0.95"))
			res, err := Parse(strings.NewReader(out), "/repo")
			require.NoError(t, err)

			assert.Equal(t, []string{"b"}, res.Licenses.Directories())
			require.Len(t, res.Diagnostics, 1)
			assert.Equal(t, model.DiagMalformedScanLine, res.Diagnostics[0].Kind)
		})
	}
}

func TestParse_IncompleteTrailingGroup(t *testing.T) {
	out := crawl(group("/repo/LICENSE", "MIT", "1.0")) + "/repo/x/LICENSE\nLicense: ISC (x)\n"
	res, err := Parse(strings.NewReader(out), "/repo")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Licenses.Len())
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, 4, res.Diagnostics[0].Line)
	assert.Contains(t, res.Diagnostics[0].Message, "2 of 3")
}

func TestParse_EmptyOutput(t *testing.T) {
	res, err := Parse(strings.NewReader(""), "/repo")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Licenses.Len())
	assert.Empty(t, res.Diagnostics)
}

func TestParse_FirstSightingOrder(t *testing.T) {
	out := crawl(
		group("/repo/vendor/zlib/LICENSE", "Zlib", "1.0"),
		group("/repo/LICENSE", "MIT", "1.0"),
		group("/repo/docs/LICENSE", "CC-BY-4.0", "0.9"),
	)
	res, err := Parse(strings.NewReader(out), "/repo")
	require.NoError(t, err)
	assert.Equal(t, []string{"vendor/zlib", ".", "docs"}, res.Licenses.Directories())
}

func TestParse_CRLF(t *testing.T) {
	out := "/repo/LICENSE\r\nLicense: MIT (original text)\r\nScore: 1.000\r\n"
	res, err := Parse(strings.NewReader(out), "/repo")
	require.NoError(t, err)
	require.Len(t, res.Accepted, 1)
	assert.Equal(t, "1.000", res.Accepted[0].Score)
}

func TestCollect_ReadErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	r := io.MultiReader(strings.NewReader(crawl(group("/repo/LICENSE", "MIT", "1.0"))), iotest.ErrReader(boom))

	res, err := Parse(r, "/repo")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, res.Licenses.Len())
}

func TestDecoder_NextAfterEOF(t *testing.T) {
	d := NewDecoder(strings.NewReader(crawl(group("/repo/LICENSE", "MIT", "1.0"))), "/repo")

	e, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, model.ScanEntry{Directory: ".", License: "MIT", Score: "1.0", Line: 1}, e)

	_, err = d.Next()
	assert.Equal(t, io.EOF, err)
	_, err = d.Next()
	assert.Equal(t, io.EOF, err)
}

func TestEntries_StopsEarly(t *testing.T) {
	out := crawl(group("/repo/a/LICENSE", "MIT", "1"), group("/repo/b/LICENSE", "MIT", "1"))
	n := 0
	for range Entries(strings.NewReader(out), "/repo") {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestStatic_Scan(t *testing.T) {
	seq, err := Static{Output: crawl(group("/work/demo/LICENSE", "MIT", "1.0"))}.Scan(context.Background(), "/work/demo")
	require.NoError(t, err)

	res, err := Collect(seq)
	require.NoError(t, err)
	assert.Equal(t, []string{"."}, res.Licenses.Directories())
}

func TestParse_OverlongLineSkipsGroup(t *testing.T) {
	long := "/repo/" + strings.Repeat("x", maxLineLength+10) + "/LICENSE"
	out := crawl(group(long, "MIT", "1.0"), group("/repo/vendor/x/COPYING", "Apache-2.0", "0.950"))

	res, err := Parse(strings.NewReader(out), "/repo")
	require.NoError(t, err)
	assert.Equal(t, []string{"vendor/x"}, res.Licenses.Directories())
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, model.DiagMalformedScanLine, res.Diagnostics[0].Kind)
	assert.Equal(t, 1, res.Diagnostics[0].Line)
	assert.Equal(t, 4, res.Accepted[0].Line)
}

// fakeAskalono writes a shell script standing in for the askalono binary.
func fakeAskalono(t *testing.T, crawlBody string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stub")
	}
	bin := filepath.Join(t.TempDir(), "askalono")
	script := "#!/bin/sh\n" +
		"if [ \"$1\" = \"--version\" ]; then echo 'askalono 0.4.6'; echo 'extra'; exit 0; fi\n" +
		"[ \"$1\" = \"crawl\" ] || exit 3\n" +
		crawlBody
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return bin
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

const mitAtRoot = "printf '%s/LICENSE\\nLicense: MIT (original text)\\nScore: 1.000\\n' \"$2\"\n"

func TestAskalono_Scan(t *testing.T) {
	bin := fakeAskalono(t, mitAtRoot+
		"printf '%s/vendor/x/COPYING\\nLicense: Apache-2.0 (original text)\\nScore: 0.950\\n' \"$2\"\n")

	seq, err := NewAskalono(bin, quietLogger()).Scan(context.Background(), "/repo")
	require.NoError(t, err)
	res, err := Collect(seq)
	require.NoError(t, err)
	assert.Equal(t, []string{".", "vendor/x"}, res.Licenses.Directories())
	assert.Equal(t, "0.950", res.Accepted[1].Score)
}

func TestAskalono_ScanKeepsOutputOnFailedExit(t *testing.T) {
	bin := fakeAskalono(t, mitAtRoot+"echo 'error: unreadable file' >&2\nexit 1\n")

	seq, err := NewAskalono(bin, quietLogger()).Scan(context.Background(), "/repo")
	require.NoError(t, err)
	res, err := Collect(seq)
	require.NoError(t, err)
	lic, ok := res.Licenses.Get(".")
	require.True(t, ok)
	assert.Equal(t, "MIT", lic)
}

func TestAskalono_ScanFailsWithoutOutput(t *testing.T) {
	bin := fakeAskalono(t, "echo 'error: no such directory' >&2\nexit 1\n")

	seq, err := NewAskalono(bin, quietLogger()).Scan(context.Background(), "/repo")
	require.Error(t, err)
	assert.Nil(t, seq)
	assert.ErrorContains(t, err, "askalono crawl")
	assert.ErrorContains(t, err, "no such directory")
}

func TestAskalono_ScanMissingBinary(t *testing.T) {
	_, err := NewAskalono(filepath.Join(t.TempDir(), "missing"), nil).Scan(context.Background(), "/repo")
	assert.ErrorContains(t, err, "askalono crawl")
}

func TestAskalono_Version(t *testing.T) {
	bin := fakeAskalono(t, "")

	v, err := NewAskalono(bin, nil).Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "askalono 0.4.6", v)
}
