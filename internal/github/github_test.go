package github

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		url  string
		host string
		org  string
		name string
	}{
		{"https://github.com/acme/demo", "com", "acme", "demo"},
		{"https://github.com/acme/demo.git", "com", "acme", "demo"},
		{"https://github.com/acme/demo/tree/main", "com", "acme", "demo"},
		{"https://github.tools.example/ospo/reuse-tool", "tools.example", "ospo", "reuse-tool"},
		{"git@github.com:acme/demo.git", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			repo, err := ParseURL(tt.url)
			if tt.org == "" {
				require.ErrorIs(t, err, ErrNotGitHub)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.host, repo.HostSuffix)
			assert.Equal(t, tt.org, repo.Organization)
			assert.Equal(t, tt.name, repo.Name)
			assert.Equal(t, tt.url, repo.URL)
			assert.Equal(t, tt.org+"/"+tt.name, repo.FullName())
		})
	}
}

func TestParseURL_NotGitHub(t *testing.T) {
	_, err := ParseURL("https://gitlab.com/acme/demo")
	assert.ErrorIs(t, err, ErrNotGitHub)
}
