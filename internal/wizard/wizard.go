// Package wizard sequences drafting, editing, submission and approval behind
// the steps a user walks through. Two variants share the same core: customize
// picks one of several generated candidates, analyze edits the template an
// analysis proposes and then waits for approval.
package wizard

import (
	"context"
	"errors"
	"fmt"

	"whatsapp-template-studio/internal/approval"
	"whatsapp-template-studio/internal/media"
	"whatsapp-template-studio/internal/submission"
	"whatsapp-template-studio/internal/template"
)

var (
	ErrEmptyRequirements = errors.New("requirements are empty")
	ErrNoDraft           = errors.New("no draft to edit")
	ErrNoCandidates      = errors.New("generator returned no templates")
	ErrInvalidStep       = errors.New("invalid step")
	ErrUnknownVariant    = errors.New("unknown wizard variant")
	ErrSessionNotFound   = errors.New("wizard session not found")
	ErrSessionClosed     = errors.New("wizard session closed")
	ErrSuperseded        = errors.New("result superseded by a newer request")
)

type Variant string

const (
	Customize Variant = "customize"
	Analyze   Variant = "analyze"
)

func ParseVariant(s string) (Variant, error) {
	switch v := Variant(s); v {
	case Customize, Analyze:
		return v, nil
	case "":
		return Customize, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
	}
}

type Step string

const (
	StepRequirements Step = "requirements"
	StepSelect       Step = "select"
	StepCustomize    Step = "customize"
	StepSubmit       Step = "submit"
	StepEdit         Step = "edit"
	StepPreview      Step = "preview"
	StepApproval     Step = "approval"
)

var steps = map[Variant][]Step{
	Customize: {StepRequirements, StepSelect, StepCustomize, StepSubmit},
	Analyze:   {StepRequirements, StepEdit, StepPreview, StepApproval},
}

// Steps returns the ordered steps of v.
func Steps(v Variant) []Step {
	return append([]Step(nil), steps[v]...)
}

func stepIndex(v Variant, s Step) int {
	for i, step := range steps[v] {
		if step == s {
			return i
		}
	}
	return -1
}

// Steps where the draft may be edited.
func editable(s Step) bool {
	return s == StepCustomize || s == StepSubmit || s == StepEdit || s == StepPreview
}

// Steps a variant submits from. Analyze drafts are reviewed on preview first.
func submittable(v Variant, s Step) bool {
	if v == Analyze {
		return s == StepPreview
	}
	return s == StepCustomize || s == StepSubmit
}

type Recommendation string

const (
	UseExisting Recommendation = "use_existing"
	CreateNew   Recommendation = "create_new"
)

// Analysis is what the analyze variant gets back for a set of requirements.
type Analysis struct {
	Recommendation   Recommendation         `json:"recommendation"`
	ExistingTemplate string                 `json:"existing_template,omitempty"`
	NewTemplate      *template.Template     `json:"new_template,omitempty"`
	NeedsMedia       bool                   `json:"needs_media"`
	MediaType        string                 `json:"media_type,omitempty"`
	Reasoning        string                 `json:"reasoning,omitempty"`
	VariablesNeeded  []template.Variable    `json:"variables_needed,omitempty"`
	SuggestedFlow    approval.SuggestedFlow `json:"suggested_flow"`
}

// Generator produces drafts from free-text requirements.
type Generator interface {
	Generate(ctx context.Context, requirements string) ([]template.Template, error)
	Analyze(ctx context.Context, requirements string) (Analysis, error)
}

// Backend bundles the remote collaborators a session talks to. Submitters is
// keyed by variant because each variant submits to its own endpoint.
type Backend struct {
	Generator  Generator
	Submitters map[Variant]submission.Submitter
	Checker    approval.StatusChecker
	Flows      approval.FlowCreator
}

func (b Backend) submitter(v Variant) (submission.Submitter, error) {
	s, ok := b.Submitters[v]
	if !ok || s == nil {
		return nil, fmt.Errorf("%w: no submitter for %q", ErrUnknownVariant, v)
	}
	return s, nil
}

// Submitted describes a successful submission.
type Submitted struct {
	SessionID    string
	Variant      Variant
	Requirements string
	Record       submission.Record
	Payload      submission.Payload
}

// Observer is told about submissions and approval progress. ApprovalEvent is
// called from the poller goroutine.
type Observer interface {
	Submitted(ctx context.Context, s Submitted)
	ApprovalEvent(sessionID string, e approval.Event)
}

type nopObserver struct{}

func (nopObserver) Submitted(context.Context, Submitted) {}
func (nopObserver) ApprovalEvent(string, approval.Event) {}

// ApprovalSnapshot is the poller state as seen by a client.
type ApprovalSnapshot struct {
	Status    approval.Status `json:"status"`
	FlowID    string          `json:"flow_id,omitempty"`
	FlowError string          `json:"flow_error,omitempty"`
	Done      bool            `json:"done"`
}

// Snapshot is a read-only copy of a session.
type Snapshot struct {
	ID           string              `json:"id"`
	Variant      Variant             `json:"variant"`
	Step         Step                `json:"step"`
	Steps        []Step              `json:"steps"`
	Requirements string              `json:"requirements"`
	Candidates   []template.Template `json:"candidates,omitempty"`
	Analysis     *Analysis           `json:"analysis,omitempty"`
	Draft        *template.Template  `json:"draft,omitempty"`
	Media        media.State         `json:"media"`
	MediaAccept  string              `json:"media_accept,omitempty"`
	Validation   *submission.Result  `json:"validation,omitempty"`
	Submitting   bool                `json:"submitting"`
	Submission   *submission.Record  `json:"submission,omitempty"`
	Approval     *ApprovalSnapshot   `json:"approval,omitempty"`
}
