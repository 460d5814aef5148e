package github

import (
	"errors"
	"regexp"
)

var ErrNotGitHub = errors.New("no GitHub repository provided, only a single GitHub repository URL is supported")

// Matches github.com and GitHub Enterprise hosts such as github.example.com.
var repoPattern = regexp.MustCompile(`github\.([^/]+)/([^/]+)/([^/.]+)`)

type Repo struct {
	URL          string
	HostSuffix   string
	Organization string
	Name         string
}

func (r Repo) FullName() string { return r.Organization + "/" + r.Name }

func ParseURL(raw string) (Repo, error) {
	m := repoPattern.FindStringSubmatch(raw)
	if m == nil {
		return Repo{}, ErrNotGitHub
	}
	return Repo{URL: raw, HostSuffix: m[1], Organization: m[2], Name: m[3]}, nil
}
