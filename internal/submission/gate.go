package submission

import (
	"fmt"
	"strings"

	"whatsapp-template-studio/internal/media"
	"whatsapp-template-studio/internal/template"
)

// ReasonCode names why a draft cannot be submitted yet.
type ReasonCode string

const (
	ReasonMissingMediaAsset ReasonCode = "MissingMediaAsset"
	WarningAssetMismatch    ReasonCode = "AssetTypeMismatch"
)

// Reason is one itemized gate finding.
type Reason struct {
	Code    ReasonCode `json:"code"`
	Message string     `json:"message"`
}

// Result lists blocking reasons and non-blocking warnings.
type Result struct {
	Reasons  []Reason `json:"reasons"`
	Warnings []Reason `json:"warnings,omitempty"`
}

// OK is true when nothing blocks submission.
func (r Result) OK() bool {
	return len(r.Reasons) == 0
}

// Err returns nil when OK, otherwise an error wrapping the sentinel of the
// first blocking reason.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	msgs := make([]string, len(r.Reasons))
	for i, reason := range r.Reasons {
		msgs[i] = reason.Message
	}
	return fmt.Errorf("%w: %s", ErrMissingMediaAsset, strings.Join(msgs, "; "))
}

// Validate blocks only drafts known to be incomplete. Name, footer and button
// limits are enforced at input time.
func Validate(t template.Template, state media.State) Result {
	result := Result{Reasons: []Reason{}}

	h, ok := t.ActiveHeader()
	if !ok || !h.Format.IsMedia() {
		return result
	}

	if state.Kind != media.Uploaded || state.Asset == nil {
		result.Reasons = append(result.Reasons, Reason{
			Code:    ReasonMissingMediaAsset,
			Message: fmt.Sprintf("upload a %s file or remove the media header", strings.ToLower(string(h.Format))),
		})
		return result
	}

	if !media.Accepts(h.Format, *state.Asset) {
		result.Warnings = append(result.Warnings, Reason{
			Code:    WarningAssetMismatch,
			Message: fmt.Sprintf("%s (%s) does not look like a %s file", state.Asset.Filename, state.Asset.MimeType, strings.ToLower(string(h.Format))),
		})
	}
	return result
}
