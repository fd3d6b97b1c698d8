package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"whatsapp-template-studio/internal/database"
	"whatsapp-template-studio/internal/media"
	"whatsapp-template-studio/internal/submission"
	"whatsapp-template-studio/internal/template"
	"whatsapp-template-studio/internal/wizard"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var backendErr *submission.BackendError
	switch {
	case errors.As(err, &backendErr):
		return http.StatusBadGateway
	case errors.Is(err, wizard.ErrSessionNotFound),
		errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, submission.ErrMissingMediaAsset):
		return http.StatusUnprocessableEntity
	case errors.Is(err, submission.ErrSubmissionInProgress),
		errors.Is(err, wizard.ErrInvalidStep),
		errors.Is(err, wizard.ErrNoDraft),
		errors.Is(err, wizard.ErrSuperseded),
		errors.Is(err, wizard.ErrSessionClosed),
		errors.Is(err, media.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, template.ErrInvalidValue),
		errors.Is(err, template.ErrIndexOutOfRange),
		errors.Is(err, template.ErrUnknownField),
		errors.Is(err, wizard.ErrEmptyRequirements),
		errors.Is(err, wizard.ErrUnknownVariant),
		errors.Is(err, wizard.ErrNoCandidates):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": ...}. Backend failures also carry the
// backend's suggestion. A snapshot, when given, lets the client re-render
// the untouched draft.
func respondError(c *gin.Context, err error, snapshot any) {
	body := gin.H{"error": err.Error()}

	var backendErr *submission.BackendError
	if errors.As(err, &backendErr) {
		body["error"] = backendErr.Message
		if backendErr.Suggestion != "" {
			body["suggestion"] = backendErr.Suggestion
		}
	}
	if snapshot != nil {
		body["session"] = snapshot
	}

	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(code, body)
}
