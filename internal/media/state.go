// Package media tracks whether a draft carries a media header and whether the
// binary sample for it has been attached.
package media

import (
	"errors"
	"fmt"

	"whatsapp-template-studio/internal/template"
)

var ErrInvalidTransition = errors.New("invalid media transition")

// Kind is the media state name.
type Kind string

const (
	NoMedia          Kind = "no_media"
	PendingUpload    Kind = "pending_upload"
	Uploaded         Kind = "uploaded"
	MarkedForRemoval Kind = "marked_for_removal"
)

// State is a value: transitions return a new State and never modify the
// receiver. Format is kept in MarkedForRemoval so Restore can return to it.
type State struct {
	Kind   Kind            `json:"kind"`
	Format template.Format `json:"format,omitempty"`
	Asset  *Asset          `json:"asset,omitempty"`
}

// None is the initial state of a draft without a media header.
func None() State {
	return State{Kind: NoMedia}
}

// StateFor derives the state of a freshly instantiated draft.
func StateFor(t template.Template) State {
	h, _, ok := t.Header()
	if !ok || !h.Format.IsMedia() {
		return None()
	}
	if h.Removed {
		return State{Kind: MarkedForRemoval, Format: h.Format}
	}
	return State{Kind: PendingUpload, Format: h.Format}
}

// HasMedia reports PendingUpload or Uploaded.
func (s State) HasMedia() bool {
	return s.Kind == PendingUpload || s.Kind == Uploaded
}

// RequestAdd turns on a media header of format f. The HEADER is inserted at
// position 0, or reinstated when one already exists.
func (s State) RequestAdd(t template.Template, f template.Format) (template.Template, State, error) {
	if s.Kind != NoMedia && s.Kind != MarkedForRemoval {
		return t, s, transitionError("add media", s)
	}
	if !f.IsMedia() {
		return t, s, fmt.Errorf("%w: %q is not a media format", template.ErrInvalidValue, f)
	}
	return upsertHeader(t, f), State{Kind: PendingUpload, Format: f}, nil
}

// RequestRemove marks the HEADER removed and drops any attached asset. The
// HEADER stays in the draft so Restore can bring it back.
func (s State) RequestRemove(t template.Template) (template.Template, State, error) {
	if !s.HasMedia() {
		return t, s, transitionError("remove media", s)
	}
	out := template.Clone(t)
	if h, i, ok := out.Header(); ok {
		h.Removed = true
		out.Components[i] = h
	}
	return out, State{Kind: MarkedForRemoval, Format: s.Format}, nil
}

// ChangeType switches the media format. Assets are not convertible between
// formats, so any attached one is cleared.
func (s State) ChangeType(t template.Template, f template.Format) (template.Template, State, error) {
	if !s.HasMedia() {
		return t, s, transitionError("change media type", s)
	}
	if !f.IsMedia() {
		return t, s, fmt.Errorf("%w: %q is not a media format", template.ErrInvalidValue, f)
	}
	return upsertHeader(t, f), State{Kind: PendingUpload, Format: f}, nil
}

// Attach records the uploaded sample. Whether the asset matches the accept
// filter is not checked here; see Accepts.
func (s State) Attach(a Asset) (State, error) {
	if s.Kind != PendingUpload {
		return s, transitionError("attach asset", s)
	}
	asset := a.clone()
	return State{Kind: Uploaded, Format: s.Format, Asset: &asset}, nil
}

// Detach drops the attached sample and waits for another one.
func (s State) Detach() (State, error) {
	if s.Kind != Uploaded {
		return s, transitionError("detach asset", s)
	}
	return State{Kind: PendingUpload, Format: s.Format}, nil
}

// Restore undoes RequestRemove, keeping the format the header had.
func (s State) Restore(t template.Template) (template.Template, State, error) {
	if s.Kind != MarkedForRemoval {
		return t, s, transitionError("restore media", s)
	}
	out := template.Clone(t)
	format := s.Format
	if h, i, ok := out.Header(); ok {
		h.Removed = false
		format = h.Format
		out.Components[i] = h
	} else {
		out = upsertHeader(out, format)
	}
	return out, State{Kind: PendingUpload, Format: format}, nil
}

func upsertHeader(t template.Template, f template.Format) template.Template {
	out := template.Clone(t)
	if h, i, ok := out.Header(); ok {
		h.Format = f
		h.Removed = false
		h.Text = ""
		h.Example = nil
		out.Components[i] = h
		return out
	}
	comps := make(template.Components, 0, len(out.Components)+1)
	comps = append(comps, template.Header{Format: f})
	out.Components = append(comps, out.Components...)
	return out
}

func transitionError(op string, s State) error {
	return fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, op, s.Kind)
}
