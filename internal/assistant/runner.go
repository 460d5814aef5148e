package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/reuse-assistant/internal/config"
	"github.com/yourorg/reuse-assistant/internal/github"
	"github.com/yourorg/reuse-assistant/internal/licenses"
	"github.com/yourorg/reuse-assistant/internal/manifest"
	"github.com/yourorg/reuse-assistant/internal/model"
	"github.com/yourorg/reuse-assistant/internal/s3"
	"github.com/yourorg/reuse-assistant/internal/scan"
)

const commitMessage = "REUSE metadata proposal"

var (
	ErrCloneDirExists = errors.New("clone directory already exists")
	ErrNoScanResults  = errors.New("askalono didn't return any results")
	ErrAlreadySetUp   = errors.New("REUSE metadata already seems to be set up")
)

type Git interface {
	Clone(ctx context.Context, url, dir string) error
	CheckoutNewBranch(ctx context.Context, dir, branch string) error
	AddAll(ctx context.Context, dir string) error
	Commit(ctx context.Context, dir, message string) error
	Push(ctx context.Context, dir, remote, branch string) error
}

// Recorder persists run history.
type Recorder interface {
	StartRun(ctx context.Context, r model.Run) error
	RecordEvent(ctx context.Context, runID, stage, detail string, pct int) error
	RecordLicenses(ctx context.Context, runID string, entries []model.ScanEntry) error
	MarkDone(ctx context.Context, r model.Run) error
	MarkFailed(ctx context.Context, runID, errMsg string) error
}

// Archive keeps a copy of generated manifests outside the repository.
type Archive interface {
	Put(ctx context.Context, key string, content []byte) error
}

// Deps are the collaborators a Runner drives. Archive and History are optional.
type Deps struct {
	Git      Git
	Scanner  scan.Source
	Licenses licenses.Downloader
	Archive  Archive
	History  Recorder
	Log      logrus.FieldLogger
	// Out receives the generated manifest text.
	Out io.Writer
}

type Options struct {
	// NoPush commits the proposal locally without pushing it.
	NoPush bool
}

type Result struct {
	RunID       string
	Repo        github.Repo
	Dir         string
	Branch      string
	Licenses    *model.LicenseMap
	Entries     []model.ScanEntry
	Diagnostics []model.Diagnostic
	ManifestKey string
	Pushed      bool
	Events      []model.ProgressEvent
}

type Runner struct {
	cfg  config.Config
	deps Deps

	now        func() time.Time
	newID      func() string
	retryDelay time.Duration
}

func NewRunner(cfg config.Config, deps Deps) *Runner {
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	if deps.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		deps.Log = l
	}
	return &Runner{
		cfg:        cfg,
		deps:       deps,
		now:        time.Now,
		newID:      uuid.NewString,
		retryDelay: 2 * time.Second,
	}
}

// Run proposes REUSE metadata for the repository at rawURL.
func (r *Runner) Run(ctx context.Context, rawURL string, opts Options) (*Result, error) {
	repo, err := github.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	run := model.Run{
		ID:           r.newID(),
		RepoURL:      rawURL,
		Organization: repo.Organization,
		Repository:   repo.Name,
		Branch:       r.cfg.ProposalBranch,
		Status:       model.RunRunning,
		StartedAt:    r.now(),
	}
	log := r.deps.Log.WithFields(logrus.Fields{"run_id": run.ID, "repo": repo.FullName()})

	history := r.deps.History
	if history != nil {
		if err := history.StartRun(ctx, run); err != nil {
			log.WithError(err).Warn("run history unavailable, continuing without it")
			history = nil
		}
	}
	p := &progress{runID: run.ID, history: history, log: log, now: r.now}

	res, err := r.propose(ctx, p, repo, run.ID, opts)
	res.Events = p.events
	if err != nil {
		log.WithError(err).Error("proposal failed")
		if history != nil {
			dbctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if herr := history.MarkFailed(dbctx, run.ID, err.Error()); herr != nil {
				log.WithError(herr).Warn("mark run failed")
			}
		}
		return res, err
	}

	if history != nil {
		run.Entries = res.Licenses.Len()
		run.Diagnostics = len(res.Diagnostics)
		run.ManifestKey = res.ManifestKey
		dbctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := history.RecordLicenses(dbctx, run.ID, res.Entries); err != nil {
			log.WithError(err).Warn("record licenses failed")
		}
		if err := history.MarkDone(dbctx, run); err != nil {
			log.WithError(err).Warn("mark run done failed")
		}
	}
	return res, nil
}

func (r *Runner) propose(ctx context.Context, p *progress, repo github.Repo, runID string, opts Options) (*Result, error) {
	res := &Result{RunID: runID, Repo: repo, Branch: r.cfg.ProposalBranch}
	p.stage(ctx, stageStart, "proposing REUSE metadata for "+repo.URL)

	dir, err := r.prepareCloneDir(repo.Name)
	if err != nil {
		return res, err
	}
	res.Dir = dir

	p.stage(ctx, stageClone, fmt.Sprintf("cloning %s into directory %s", repo.FullName(), dir))
	if err := r.clone(ctx, p.log, repo.URL, dir); err != nil {
		return res, fmt.Errorf("clone %s: %w", repo.FullName(), err)
	}

	p.stage(ctx, stageScan, "calling askalono to get license information for complete repository")
	scanned, err := r.scan(ctx, p.log, dir)
	if err != nil {
		return res, err
	}
	res.Licenses = scanned.Licenses
	res.Entries = scanned.Accepted
	res.Diagnostics = scanned.Diagnostics
	if scanned.Licenses.Len() == 0 {
		return res, ErrNoScanResults
	}
	p.log.Infof("askalono call successful, directories with licenses found: %d", scanned.Licenses.Len())

	p.stage(ctx, stageManifest, "writing "+manifest.Path)
	content, err := r.writeManifest(dir, repo, scanned.Licenses)
	if err != nil {
		return res, err
	}
	if _, err := r.deps.Out.Write(content); err != nil {
		return res, err
	}

	p.stage(ctx, stageLicenses, "downloading license texts")
	if err := r.deps.Licenses.Download(ctx, dir, scanned.Licenses.Licenses()); err != nil {
		return res, fmt.Errorf("download licenses: %w", err)
	}

	if r.deps.Archive != nil {
		key := s3.ManifestKey(repo.Organization, repo.Name, runID)
		p.stage(ctx, stageArchive, "archiving manifest as "+key)
		if err := r.deps.Archive.Put(ctx, key, content); err != nil {
			p.log.WithError(err).Warn("manifest archive failed")
		} else {
			res.ManifestKey = key
		}
	}

	p.stage(ctx, stagePush, "committing proposal on branch "+r.cfg.ProposalBranch)
	if err := r.commit(ctx, dir); err != nil {
		return res, err
	}
	if opts.NoPush {
		p.log.Info("push skipped, proposal committed locally")
	} else {
		if err := r.push(ctx, p.log, dir); err != nil {
			return res, fmt.Errorf("push %s: %w", r.cfg.ProposalBranch, err)
		}
		res.Pushed = true
	}

	p.stage(ctx, stageDone, "metadata creation finished")
	return res, nil
}

func (r *Runner) prepareCloneDir(name string) (string, error) {
	base, err := filepath.Abs(r.cfg.WorkDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", fmt.Errorf("create work directory: %w", err)
	}
	dir := filepath.Join(base, name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("%w: %s", ErrCloneDirExists, dir)
		}
		return "", fmt.Errorf("unable to create clone directory %s: %w", dir, err)
	}
	return dir, nil
}

func (r *Runner) clone(ctx context.Context, log logrus.FieldLogger, url, dir string) error {
	return retry(ctx, r.cfg.GitRetries, r.retryDelay, func(attempt int) error {
		if attempt > 1 {
			log.WithField("attempt", attempt).Warn("retrying clone")
			if err := os.RemoveAll(dir); err != nil {
				return err
			}
			if err := os.Mkdir(dir, 0o755); err != nil {
				return err
			}
		}
		cctx, cancel := context.WithTimeout(ctx, r.cfg.GitTimeout)
		defer cancel()
		return r.deps.Git.Clone(cctx, url, dir)
	})
}

func (r *Runner) scan(ctx context.Context, log logrus.FieldLogger, dir string) (scan.Result, error) {
	sctx, cancel := context.WithTimeout(ctx, r.cfg.ScanTimeout)
	defer cancel()

	seq, err := r.deps.Scanner.Scan(sctx, dir)
	if err != nil {
		return scan.Result{}, err
	}
	res, err := scan.Collect(seq)
	if err != nil {
		return res, err
	}
	for _, e := range res.Accepted {
		log.WithFields(logrus.Fields{"dir": e.Directory, "license": e.License, "score": e.Score}).Info("license found")
	}
	for _, d := range res.Diagnostics {
		log.WithFields(logrus.Fields{"kind": d.Kind, "line": d.Line, "dir": d.Directory}).Warn(d.Message)
	}
	return res, nil
}

func (r *Runner) writeManifest(dir string, repo github.Repo, lm *model.LicenseMap) ([]byte, error) {
	reuseDir := filepath.Join(dir, filepath.Dir(manifest.Path))
	if _, err := os.Stat(reuseDir); err == nil {
		return nil, ErrAlreadySetUp
	}
	if err := os.MkdirAll(reuseDir, 0o755); err != nil {
		return nil, err
	}
	meta := model.ManifestMetadata{
		Organization:    repo.Organization,
		Repository:      repo.Name,
		UpstreamContact: r.cfg.UpstreamContact,
		CopyrightOwner:  r.cfg.CopyrightOwner,
		Year:            r.now().Year(),
	}
	content := manifest.Bytes(lm, meta)
	if err := os.WriteFile(filepath.Join(dir, manifest.Path), content, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", manifest.Path, err)
	}
	return content, nil
}

func (r *Runner) commit(ctx context.Context, dir string) error {
	gctx, cancel := context.WithTimeout(ctx, r.cfg.GitTimeout)
	defer cancel()
	if err := r.deps.Git.CheckoutNewBranch(gctx, dir, r.cfg.ProposalBranch); err != nil {
		return err
	}
	if err := r.deps.Git.AddAll(gctx, dir); err != nil {
		return err
	}
	return r.deps.Git.Commit(gctx, dir, commitMessage)
}

func (r *Runner) push(ctx context.Context, log logrus.FieldLogger, dir string) error {
	return retry(ctx, r.cfg.GitRetries, r.retryDelay, func(attempt int) error {
		if attempt > 1 {
			log.WithField("attempt", attempt).Warn("retrying push")
		}
		pctx, cancel := context.WithTimeout(ctx, r.cfg.GitTimeout)
		defer cancel()
		return r.deps.Git.Push(pctx, dir, "origin", r.cfg.ProposalBranch)
	})
}
