package manifest

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/reuse-assistant/internal/model"
)

var demo = model.ManifestMetadata{
	Organization:    "acme-oss",
	Repository:      "demo",
	UpstreamContact: "Acme OSPO <ospo@acme.example>",
	CopyrightOwner:  "Acme",
	Year:            2024,
}

func licenses(pairs ...string) *model.LicenseMap {
	m := model.NewLicenseMap()
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Add(pairs[i], pairs[i+1])
	}
	return m
}

func TestRender_Full(t *testing.T) {
	lm := licenses(".", "MIT", "vendor/foo/bar", "Apache-2.0", "src/utils", "BSD-3-Clause")

	want := `Format: https://www.debian.org/doc/packaging-manuals/copyright-format/1.0/
Upstream-Name: demo
Upstream-Contact: Acme OSPO <ospo@acme.example>
Source: https://github.com/acme-oss/demo

Files: *
Copyright: 2024 Acme and demo contributors.
License: MIT

Files: vendor/foo/bar/*
Copyright: 2024 foo/bar contributors.
License: Apache-2.0

Files: src/utils/*
Copyright: 2024 utils contributors.
License: BSD-3-Clause

`
	var sb strings.Builder
	require.NoError(t, Render(&sb, lm, demo))
	assert.Equal(t, want, sb.String())
}

func TestRender_RootBlock(t *testing.T) {
	blocks := Blocks(licenses(".", "MIT"), demo)
	require.Len(t, blocks, 1)
	assert.Equal(t, model.ManifestBlock{
		Files:     "*",
		Copyright: "2024 Acme and demo contributors.",
		License:   "MIT",
	}, blocks[0])
}

func TestRender_Deterministic(t *testing.T) {
	lm := licenses("b", "MIT", "a", "ISC", ".", "GPL-2.0-only")
	assert.Equal(t, Bytes(lm, demo), Bytes(lm, demo))
}

func TestRender_HeaderOnceAndFirst(t *testing.T) {
	out := string(Bytes(licenses("x", "MIT", "y", "MIT"), demo))
	assert.True(t, strings.HasPrefix(out, "Format: "+FormatURL+"\n"))
	assert.Equal(t, 1, strings.Count(out, "Format: "))
	assert.Equal(t, 1, strings.Count(out, "Upstream-Name: "))
}

func TestRender_EmptyMapIsHeaderOnly(t *testing.T) {
	assert.Equal(t, Header(demo), string(Bytes(model.NewLicenseMap(), demo)))
}

func TestRender_KeepsMapOrder(t *testing.T) {
	blocks := Blocks(licenses("z/z", "MIT", "a", "ISC"), demo)
	require.Len(t, blocks, 2)
	assert.Equal(t, "z/z/*", blocks[0].Files)
	assert.Equal(t, "a/*", blocks[1].Files)
}

func TestProjectName(t *testing.T) {
	tests := map[string]string{
		"vendor/foo/bar": "foo/bar",
		"vendor/foo":     "foo",
		"src/utils":      "utils",
		"third_party":    "third_party",
		"a/vendor/b":     "b",
		"lib/vendor/x/y": "y",
		"vendored/pkg":   "pkg",
	}
	for dir, want := range tests {
		assert.Equal(t, want, ProjectName(dir), dir)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRender_WriterError(t *testing.T) {
	err := Render(failingWriter{}, licenses(".", "MIT"), demo)
	assert.EqualError(t, err, "disk full")
}

func TestBytes_MatchesRender(t *testing.T) {
	lm := licenses(".", "MIT", "vendor/foo", "Apache-2.0")
	var sb strings.Builder
	require.NoError(t, Render(&sb, lm, demo))
	assert.Equal(t, sb.String(), string(Bytes(lm, demo)))
}
