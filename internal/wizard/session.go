package wizard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"whatsapp-template-studio/internal/approval"
	"whatsapp-template-studio/internal/media"
	"whatsapp-template-studio/internal/submission"
	"whatsapp-template-studio/internal/template"
)

// Session is one user's walk through a wizard. Mutations hold the session
// lock; generator and backend calls run without it.
type Session struct {
	id         string
	variant    Variant
	createdAt  time.Time
	backend    Backend
	pollConfig approval.Config
	observer   Observer
	logger     *zap.Logger
	pipeline   *submission.Pipeline
	lastUsed   atomic.Int64

	mu           sync.Mutex
	step         Step
	requirements string
	candidates   []template.Template
	analysis     *Analysis
	draft        *template.Template
	media        media.State
	submitted    *template.Template
	record       *submission.Record
	poller       *approval.Poller
	seq          uint64
	closed       bool
}

func newSession(id string, variant Variant, backend Backend, pollConfig approval.Config, observer Observer, logger *zap.Logger) (*Session, error) {
	sub, err := backend.submitter(variant)
	if err != nil {
		return nil, err
	}
	if observer == nil {
		observer = nopObserver{}
	}
	logger = logger.Named("wizard").With(zap.String("session_id", id), zap.String("variant", string(variant)))
	s := &Session{
		id:         id,
		variant:    variant,
		createdAt:  time.Now(),
		backend:    backend,
		pollConfig: pollConfig,
		observer:   observer,
		logger:     logger,
		pipeline:   submission.NewPipeline(sub, logger),
		step:       StepRequirements,
		media:      media.None(),
	}
	s.touch(s.createdAt)
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Variant() Variant { return s.variant }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

// LastUsed is when the session was last looked up by a client.
func (s *Session) LastUsed() time.Time { return time.Unix(0, s.lastUsed.Load()) }

func (s *Session) touch(t time.Time) { s.lastUsed.Store(t.UnixNano()) }

// Snapshot copies the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:           s.id,
		Variant:      s.variant,
		Step:         s.step,
		Steps:        Steps(s.variant),
		Requirements: s.requirements,
		Media:        s.media,
		Submitting:   s.pipeline.InFlight(),
	}
	for _, c := range s.candidates {
		snap.Candidates = append(snap.Candidates, template.Clone(c))
	}
	if s.analysis != nil {
		a := *s.analysis
		snap.Analysis = &a
	}
	if s.draft != nil {
		d := template.Clone(*s.draft)
		snap.Draft = &d
		res := submission.Validate(d, s.media)
		snap.Validation = &res
		if d.HasMedia() {
			snap.MediaAccept = media.Accept(d.MediaType())
		}
	}
	if s.record != nil {
		r := *s.record
		snap.Submission = &r
	}
	if s.poller != nil {
		as := &ApprovalSnapshot{Status: s.poller.Status()}
		flowID, flowErr := s.poller.Flow()
		as.FlowID = flowID
		if flowErr != nil {
			as.FlowError = flowErr.Error()
		}
		select {
		case <-s.poller.Done():
			as.Done = true
		default:
		}
		snap.Approval = as
	}
	return snap
}

// SetRequirements stores the requirements and asks the generator for drafts.
// Customize moves on to candidate selection. Analyze moves on to editing when
// the analysis proposes a new template and stays put when it recommends an
// existing one.
func (s *Session) SetRequirements(ctx context.Context, requirements string) (Snapshot, error) {
	requirements = strings.TrimSpace(requirements)
	if requirements == "" {
		return s.Snapshot(), ErrEmptyRequirements
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionClosed
	}
	if s.step != StepRequirements {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, fmt.Errorf("%w: requirements can only be set on the first step", ErrInvalidStep)
	}
	s.seq++
	seq := s.seq
	s.requirements = requirements
	s.mu.Unlock()

	switch s.variant {
	case Analyze:
		analysis, err := s.backend.Generator.Analyze(ctx, requirements)
		if err != nil {
			s.logger.Warn("analysis failed", zap.Error(err))
			return s.Snapshot(), err
		}
		return s.applyAnalysis(seq, analysis)
	default:
		candidates, err := s.backend.Generator.Generate(ctx, requirements)
		if err != nil {
			s.logger.Warn("generation failed", zap.Error(err))
			return s.Snapshot(), err
		}
		return s.applyCandidates(seq, candidates)
	}
}

func (s *Session) applyCandidates(seq uint64, candidates []template.Template) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.currentLocked(seq); err != nil {
		return s.snapshotLocked(), err
	}
	if len(candidates) == 0 {
		return s.snapshotLocked(), ErrNoCandidates
	}

	s.candidates = make([]template.Template, len(candidates))
	for i, c := range candidates {
		s.candidates[i] = template.Clone(c)
	}
	s.draft = nil
	s.media = media.None()
	s.step = StepSelect
	s.logger.Info("templates generated", zap.Int("candidates", len(candidates)))
	return s.snapshotLocked(), nil
}

func (s *Session) applyAnalysis(seq uint64, analysis Analysis) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.currentLocked(seq); err != nil {
		return s.snapshotLocked(), err
	}

	s.analysis = &analysis
	s.logger.Info("requirements analyzed",
		zap.String("recommendation", string(analysis.Recommendation)),
		zap.String("existing_template", analysis.ExistingTemplate))

	if analysis.Recommendation == UseExisting || analysis.NewTemplate == nil {
		s.draft = nil
		s.media = media.None()
		return s.snapshotLocked(), nil
	}

	draft := template.Clone(*analysis.NewTemplate)
	if len(draft.VariablesNeeded) == 0 && len(analysis.VariablesNeeded) > 0 {
		draft.VariablesNeeded = append([]template.Variable(nil), analysis.VariablesNeeded...)
	}
	state := media.StateFor(draft)
	if analysis.NeedsMedia && !draft.HasMedia() {
		f, err := template.ParseFormat(analysis.MediaType)
		if err != nil || !f.IsMedia() {
			f = template.FormatImage
		}
		if withMedia, next, err := state.RequestAdd(draft, f); err == nil {
			draft, state = withMedia, next
		}
	}

	s.draft = &draft
	s.media = state
	s.step = StepEdit
	return s.snapshotLocked(), nil
}

// currentLocked rejects results that arrive after the session moved on.
func (s *Session) currentLocked(seq uint64) error {
	if s.closed {
		return ErrSessionClosed
	}
	if seq != s.seq || s.step != StepRequirements {
		return ErrSuperseded
	}
	return nil
}

// Select instantiates candidate i as the draft. The candidate list is never
// aliased by the draft.
func (s *Session) Select(index int) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrSessionClosed
	}
	if s.variant != Customize || (s.step != StepSelect && s.step != StepCustomize) {
		return s.snapshotLocked(), fmt.Errorf("%w: nothing to select on %s", ErrInvalidStep, s.step)
	}
	if index < 0 || index >= len(s.candidates) {
		return s.snapshotLocked(), fmt.Errorf("%w: candidate %d", template.ErrIndexOutOfRange, index)
	}

	draft := template.Clone(s.candidates[index])
	s.draft = &draft
	s.media = media.StateFor(draft)
	s.step = StepCustomize
	return s.snapshotLocked(), nil
}

// Next advances one step when the target step has what it needs. Entering
// approval only happens through Submit.
func (s *Session) Next() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrSessionClosed
	}

	seq := steps[s.variant]
	i := stepIndex(s.variant, s.step)
	if i+1 >= len(seq) {
		return s.snapshotLocked(), fmt.Errorf("%w: %s is the last step", ErrInvalidStep, s.step)
	}
	target := seq[i+1]

	switch target {
	case StepSelect:
		if len(s.candidates) == 0 {
			return s.snapshotLocked(), ErrNoCandidates
		}
	case StepApproval:
		return s.snapshotLocked(), fmt.Errorf("%w: submit to continue", ErrInvalidStep)
	default:
		if s.draft == nil {
			return s.snapshotLocked(), ErrNoDraft
		}
	}
	s.step = target
	return s.snapshotLocked(), nil
}

// Back returns to the previous step. Leaving approval stops the poller and
// brings the submitted template back as the draft for a fresh submission.
func (s *Session) Back() (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionClosed
	}
	i := stepIndex(s.variant, s.step)
	if i <= 0 {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, fmt.Errorf("%w: %s is the first step", ErrInvalidStep, s.step)
	}

	var poller *approval.Poller
	if s.step == StepApproval {
		poller = s.poller
		s.poller = nil
		if s.submitted != nil {
			draft := template.Clone(*s.submitted)
			s.draft = &draft
			s.media = media.StateFor(draft)
		}
	}
	s.step = steps[s.variant][i-1]
	s.seq++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if poller != nil {
		poller.Stop()
	}
	return snap, nil
}

type editFunc func(d template.Template, m media.State) (template.Template, media.State, error)

// edit applies fn to the draft. On error the draft and media state are kept.
func (s *Session) edit(fn editFunc) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrSessionClosed
	}
	if s.draft == nil {
		return s.snapshotLocked(), ErrNoDraft
	}
	if !editable(s.step) {
		return s.snapshotLocked(), fmt.Errorf("%w: cannot edit on %s", ErrInvalidStep, s.step)
	}

	draft, state, err := fn(*s.draft, s.media)
	if err != nil {
		return s.snapshotLocked(), err
	}
	s.draft = &draft
	s.media = state
	return s.snapshotLocked(), nil
}

func (s *Session) SetField(field template.Field, value string) (Snapshot, error) {
	return s.edit(func(d template.Template, m media.State) (template.Template, media.State, error) {
		out, err := template.SetField(d, field, value)
		return out, m, err
	})
}

// SetComponentField edits one component field. A header format change goes
// through the media state so an attached asset never survives it.
func (s *Session) SetComponentField(index int, field template.ComponentField, value string) (Snapshot, error) {
	return s.edit(func(d template.Template, m media.State) (template.Template, media.State, error) {
		if _, i, ok := d.Header(); ok && i == index && field == template.FieldFormat {
			f, err := template.ParseFormat(value)
			if err != nil {
				return d, m, err
			}
			return setHeaderFormat(d, m, f)
		}
		out, err := template.SetComponentField(d, index, field, value)
		return out, m, err
	})
}

func setHeaderFormat(d template.Template, m media.State, f template.Format) (template.Template, media.State, error) {
	h, i, _ := d.Header()
	switch {
	case f.IsMedia() && m.HasMedia():
		if f == m.Format && h.Format == f {
			return d, m, nil
		}
		return m.ChangeType(d, f)
	case f.IsMedia():
		return m.RequestAdd(d, f)
	default:
		out, err := template.SetComponentField(d, i, template.FieldFormat, string(f))
		if err != nil {
			return d, m, err
		}
		return out, media.None(), nil
	}
}

// ToggleComponent soft-removes or restores the component at index. A media
// header is routed through the media state.
func (s *Session) ToggleComponent(index int) (Snapshot, error) {
	return s.edit(func(d template.Template, m media.State) (template.Template, media.State, error) {
		if h, i, ok := d.Header(); ok && i == index && h.Format.IsMedia() {
			if h.Removed {
				return m.Restore(d)
			}
			return m.RequestRemove(d)
		}
		out, err := template.ToggleRemoved(d, index)
		return out, m, err
	})
}

func (s *Session) AddButton() (Snapshot, error) {
	return s.edit(func(d template.Template, m media.State) (template.Template, media.State, error) {
		return template.AddButton(d), m, nil
	})
}

func (s *Session) RemoveButton(index int) (Snapshot, error) {
	return s.edit(func(d template.Template, m media.State) (template.Template, media.State, error) {
		return template.RemoveButton(d, index), m, nil
	})
}

func (s *Session) UpdateButtonText(index int, text string) (Snapshot, error) {
	return s.edit(func(d template.Template, m media.State) (template.Template, media.State, error) {
		return template.UpdateButtonText(d, index, text), m, nil
	})
}

func (s *Session) AddMedia(f template.Format) (Snapshot, error) {
	return s.edit(func(d template.Template, m media.State) (template.Template, media.State, error) {
		return m.RequestAdd(d, f)
	})
}

func (s *Session) RemoveMedia() (Snapshot, error) {
	return s.edit(func(d template.Template, m media.State) (template.Template, media.State, error) {
		return m.RequestRemove(d)
	})
}

func (s *Session) ChangeMediaType(f template.Format) (Snapshot, error) {
	return s.edit(func(d template.Template, m media.State) (template.Template, media.State, error) {
		return m.ChangeType(d, f)
	})
}

func (s *Session) RestoreMedia() (Snapshot, error) {
	return s.edit(func(d template.Template, m media.State) (template.Template, media.State, error) {
		return m.Restore(d)
	})
}

func (s *Session) AttachAsset(a media.Asset) (Snapshot, error) {
	return s.edit(func(d template.Template, m media.State) (template.Template, media.State, error) {
		next, err := m.Attach(a)
		return d, next, err
	})
}

func (s *Session) DetachAsset() (Snapshot, error) {
	return s.edit(func(d template.Template, m media.State) (template.Template, media.State, error) {
		next, err := m.Detach()
		return d, next, err
	})
}

// Validation runs the gate against the current draft.
func (s *Session) Validation() (submission.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return submission.Result{}, ErrNoDraft
	}
	return submission.Validate(*s.draft, s.media), nil
}

// Submit sends the draft. Customize resets to the first step afterwards;
// analyze moves to approval and starts polling.
func (s *Session) Submit(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionClosed
	}
	if s.draft == nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrNoDraft
	}
	if !submittable(s.variant, s.step) {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, fmt.Errorf("%w: cannot submit from %s", ErrInvalidStep, s.step)
	}
	draft := template.Clone(*s.draft)
	state := s.media
	requirements := s.requirements
	s.mu.Unlock()

	rec, err := s.pipeline.Submit(ctx, draft, state)
	if err != nil {
		return s.Snapshot(), err
	}

	s.observer.Submitted(ctx, Submitted{
		SessionID:    s.id,
		Variant:      s.variant,
		Requirements: requirements,
		Record:       rec,
		Payload:      submission.BuildPayload(draft, state),
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = &rec
	if s.closed {
		return s.snapshotLocked(), nil
	}

	s.seq++
	s.draft = nil
	s.media = media.None()

	if s.variant == Customize {
		s.requirements = ""
		s.candidates = nil
		s.step = StepRequirements
		return s.snapshotLocked(), nil
	}

	s.submitted = &draft
	s.step = StepApproval
	s.startPollerLocked(rec)
	return s.snapshotLocked(), nil
}

func (s *Session) startPollerLocked(rec submission.Record) {
	if s.poller != nil {
		go s.poller.Stop()
	}

	request := approval.FlowRequest{
		TemplateName:         rec.TemplateName,
		OriginalRequirements: s.requirements,
	}
	if s.analysis != nil {
		request.SuggestedFlow = s.analysis.SuggestedFlow
	}

	id := s.id
	observer := s.observer
	s.poller = approval.NewPoller(s.pollConfig, rec, request, s.backend.Checker, s.backend.Flows,
		func(e approval.Event) { observer.ApprovalEvent(id, e) }, s.logger)
	s.poller.Start()
}

// Close stops any poller. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	poller := s.poller
	s.mu.Unlock()

	if poller != nil {
		poller.Stop()
	}
}
