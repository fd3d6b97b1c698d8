package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"whatsapp-template-studio/internal/database"
)

type SubmissionHandler struct {
	Records *database.Records
}

func NewSubmissionHandler(records *database.Records) *SubmissionHandler {
	return &SubmissionHandler{Records: records}
}

// ListSubmissions returns the newest submissions, ?limit= defaults to 50.
func (h *SubmissionHandler) ListSubmissions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	subs, err := h.Records.ListSubmissions(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, subs)
}

// GetSubmission returns the latest submission of a template name with its
// status history.
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	sub, err := h.Records.GetSubmission(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, sub)
}
