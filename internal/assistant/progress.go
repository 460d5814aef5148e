package assistant

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/reuse-assistant/internal/model"
)

const (
	stageStart    = "start"
	stageClone    = "clone"
	stageScan     = "scan"
	stageManifest = "manifest"
	stageLicenses = "licenses"
	stageArchive  = "archive"
	stagePush     = "push"
	stageDone     = "done"
)

func derivePct(stage string) int {
	switch stage {
	case stageStart:
		return 5
	case stageClone:
		return 20
	case stageScan:
		return 50
	case stageManifest:
		return 65
	case stageLicenses:
		return 75
	case stageArchive:
		return 85
	case stagePush:
		return 95
	case stageDone:
		return 100
	default:
		return 50
	}
}

// progress reports stage transitions to the log and, when configured, to
// the run history.
type progress struct {
	runID   string
	history Recorder
	log     logrus.FieldLogger
	now     func() time.Time
	events  []model.ProgressEvent
}

func (p *progress) stage(ctx context.Context, stage, detail string) {
	p.log.WithField("stage", stage).Info(detail)
	p.events = append(p.events, model.ProgressEvent{
		Stage:  stage,
		Detail: detail,
		TS:     p.now().UTC().Format(time.RFC3339),
	})
	if p.history == nil {
		return
	}
	if err := p.history.RecordEvent(ctx, p.runID, stage, detail, derivePct(stage)); err != nil {
		p.log.WithError(err).Warn("record progress failed")
	}
}
