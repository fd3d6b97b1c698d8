// Package submission decides whether a draft may leave the process and sends
// it to the approval backend.
package submission

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"whatsapp-template-studio/internal/media"
	"whatsapp-template-studio/internal/metrics"
	"whatsapp-template-studio/internal/template"
)

var (
	ErrMissingMediaAsset    = errors.New("missing media asset")
	ErrSubmissionInProgress = errors.New("submission already in progress")
)

// BackendError is a failure reported by a remote collaborator. Message and
// Suggestion are shown to the user verbatim.
type BackendError struct {
	StatusCode int
	Message    string
	Suggestion string
}

func (e *BackendError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Record identifies a submitted template while it awaits review.
type Record struct {
	TemplateName string `json:"template_name"`
	TemplateID   string `json:"template_id"`
}

// Payload is what a Submitter sends.
type Payload struct {
	Template    template.Template
	RemoveMedia bool
	Asset       *media.Asset
}

// BuildPayload strips removed components and attaches the asset only when
// one was uploaded.
func BuildPayload(t template.Template, state media.State) Payload {
	p := Payload{
		Template:    t.Active(),
		RemoveMedia: state.Kind == media.MarkedForRemoval,
	}
	if state.Kind == media.Uploaded && state.Asset != nil {
		asset := *state.Asset
		p.Asset = &asset
	}
	return p
}

// Submitter is the approval backend.
type Submitter interface {
	Submit(ctx context.Context, p Payload) (Record, error)
}

// Pipeline submits one draft at a time. Use one Pipeline per draft.
type Pipeline struct {
	submitter Submitter
	logger    *zap.Logger
	inFlight  atomic.Bool
}

func NewPipeline(submitter Submitter, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		submitter: submitter,
		logger:    logger.Named("submission"),
	}
}

// InFlight reports whether a Submit call is outstanding.
func (p *Pipeline) InFlight() bool {
	return p.inFlight.Load()
}

// Submit validates and sends the draft. Overlapping calls are rejected with
// ErrSubmissionInProgress rather than queued. The draft is never modified.
func (p *Pipeline) Submit(ctx context.Context, t template.Template, state media.State) (Record, error) {
	if !p.inFlight.CompareAndSwap(false, true) {
		metrics.Submissions.WithLabelValues("in_progress").Inc()
		return Record{}, ErrSubmissionInProgress
	}
	defer p.inFlight.Store(false)

	if err := Validate(t, state).Err(); err != nil {
		metrics.Submissions.WithLabelValues("invalid").Inc()
		return Record{}, err
	}

	payload := BuildPayload(t, state)
	p.logger.Info("submitting template",
		zap.String("template_name", payload.Template.Name),
		zap.Bool("remove_media", payload.RemoveMedia),
		zap.Bool("has_asset", payload.Asset != nil))

	rec, err := p.submitter.Submit(ctx, payload)
	if err != nil {
		metrics.Submissions.WithLabelValues("failed").Inc()
		p.logger.Warn("template submission failed",
			zap.String("template_name", payload.Template.Name),
			zap.Error(err))
		return Record{}, err
	}
	if rec.TemplateName == "" {
		rec.TemplateName = payload.Template.Name
	}

	metrics.Submissions.WithLabelValues("submitted").Inc()
	p.logger.Info("template submitted",
		zap.String("template_name", rec.TemplateName),
		zap.String("template_id", rec.TemplateID))
	return rec, nil
}
