package model

import "time"

type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunDone    RunStatus = "done"
	RunFailed  RunStatus = "failed"
)

type ProgressEvent struct {
	Stage  string `json:"stage"`
	Detail string `json:"detail"`
	TS     string `json:"ts"`
}

// Run is one proposal attempt against a repository.
type Run struct {
	ID           string
	RepoURL      string
	Organization string
	Repository   string
	Branch       string
	Status       RunStatus
	Entries      int
	Diagnostics  int
	ManifestKey  string
	ErrorMsg     string
	StartedAt    time.Time
	FinishedAt   *time.Time
}
