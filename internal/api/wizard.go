package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"whatsapp-template-studio/internal/media"
	"whatsapp-template-studio/internal/template"
	"whatsapp-template-studio/internal/wizard"
)

// Largest header sample accepted, matching the provider's video limit.
const maxAssetSize = 16 << 20

type WizardHandler struct {
	Registry *wizard.Registry
	logger   *zap.Logger
}

func NewWizardHandler(registry *wizard.Registry, logger *zap.Logger) *WizardHandler {
	return &WizardHandler{Registry: registry, logger: logger.Named("api")}
}

// Register mounts the wizard routes on g.
func (h *WizardHandler) Register(g *gin.RouterGroup) {
	g.POST("", h.CreateSession)
	g.GET("", h.ListSessions)
	g.GET("/:id", h.GetSession)
	g.DELETE("/:id", h.DeleteSession)

	g.POST("/:id/requirements", h.SetRequirements)
	g.POST("/:id/select", h.SelectCandidate)
	g.POST("/:id/next", h.Next)
	g.POST("/:id/back", h.Back)

	g.PUT("/:id/fields", h.SetField)
	g.PUT("/:id/components/:index", h.SetComponentField)
	g.POST("/:id/components/:index/toggle", h.ToggleComponent)

	g.POST("/:id/buttons", h.AddButton)
	g.PUT("/:id/buttons/:index", h.UpdateButton)
	g.DELETE("/:id/buttons/:index", h.RemoveButton)

	g.POST("/:id/media", h.AddMedia)
	g.DELETE("/:id/media", h.RemoveMedia)
	g.PUT("/:id/media/type", h.ChangeMediaType)
	g.POST("/:id/media/restore", h.RestoreMedia)
	g.POST("/:id/media/asset", h.AttachAsset)
	g.DELETE("/:id/media/asset", h.DetachAsset)

	g.GET("/:id/validation", h.Validation)
	g.POST("/:id/submit", h.Submit)
}

func (h *WizardHandler) session(c *gin.Context) (*wizard.Session, bool) {
	s, err := h.Registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, err, nil)
		return nil, false
	}
	return s, true
}

func (h *WizardHandler) reply(c *gin.Context, snap wizard.Snapshot, err error) {
	if err != nil {
		var attached any
		if snap.ID != "" {
			attached = snap
		}
		respondError(c, err, attached)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func indexParam(c *gin.Context) (int, bool) {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid index %q", c.Param("index"))})
		return 0, false
	}
	return i, true
}

type createSessionRequest struct {
	Variant string `json:"variant"`
}

func (h *WizardHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	variant, err := wizard.ParseVariant(req.Variant)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	s, err := h.Registry.Create(variant)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, s.Snapshot())
}

func (h *WizardHandler) ListSessions(c *gin.Context) {
	sessions := h.Registry.List()
	out := make([]wizard.Snapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	c.JSON(http.StatusOK, out)
}

func (h *WizardHandler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *WizardHandler) DeleteSession(c *gin.Context) {
	if err := h.Registry.Delete(c.Param("id")); err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Session closed"})
}

type requirementsRequest struct {
	Requirements string `json:"requirements"`
}

// SetRequirements runs generation or analysis. It may take as long as the
// backend does.
func (h *WizardHandler) SetRequirements(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req requirementsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := s.SetRequirements(c.Request.Context(), req.Requirements)
	h.reply(c, snap, err)
}

type selectRequest struct {
	Index *int `json:"index"`
}

func (h *WizardHandler) SelectCandidate(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Index == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index is required"})
		return
	}
	snap, err := s.Select(*req.Index)
	h.reply(c, snap, err)
}

func (h *WizardHandler) Next(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	snap, err := s.Next()
	h.reply(c, snap, err)
}

func (h *WizardHandler) Back(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	snap, err := s.Back()
	h.reply(c, snap, err)
}

type fieldRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

func (h *WizardHandler) SetField(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req fieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := s.SetField(template.Field(req.Field), req.Value)
	h.reply(c, snap, err)
}

func (h *WizardHandler) SetComponentField(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	index, ok := indexParam(c)
	if !ok {
		return
	}
	var req fieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := s.SetComponentField(index, template.ComponentField(req.Field), req.Value)
	h.reply(c, snap, err)
}

func (h *WizardHandler) ToggleComponent(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	index, ok := indexParam(c)
	if !ok {
		return
	}
	snap, err := s.ToggleComponent(index)
	h.reply(c, snap, err)
}

func (h *WizardHandler) AddButton(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	snap, err := s.AddButton()
	h.reply(c, snap, err)
}

type buttonRequest struct {
	Text string `json:"text"`
}

func (h *WizardHandler) UpdateButton(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	index, ok := indexParam(c)
	if !ok {
		return
	}
	var req buttonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := s.UpdateButtonText(index, req.Text)
	h.reply(c, snap, err)
}

func (h *WizardHandler) RemoveButton(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	index, ok := indexParam(c)
	if !ok {
		return
	}
	snap, err := s.RemoveButton(index)
	h.reply(c, snap, err)
}

type formatRequest struct {
	Format string `json:"format" binding:"required"`
}

func bindFormat(c *gin.Context) (template.Format, bool) {
	var req formatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	f, err := template.ParseFormat(req.Format)
	if err != nil {
		respondError(c, err, nil)
		return "", false
	}
	return f, true
}

func (h *WizardHandler) AddMedia(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	f, ok := bindFormat(c)
	if !ok {
		return
	}
	snap, err := s.AddMedia(f)
	h.reply(c, snap, err)
}

func (h *WizardHandler) RemoveMedia(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	snap, err := s.RemoveMedia()
	h.reply(c, snap, err)
}

func (h *WizardHandler) ChangeMediaType(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	f, ok := bindFormat(c)
	if !ok {
		return
	}
	snap, err := s.ChangeMediaType(f)
	h.reply(c, snap, err)
}

func (h *WizardHandler) RestoreMedia(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	snap, err := s.RestoreMedia()
	h.reply(c, snap, err)
}

// AttachAsset takes the header sample from the multipart field "file".
func (h *WizardHandler) AttachAsset(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}
	defer file.Close()

	if header.Size > maxAssetSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds %d bytes", maxAssetSize)})
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("read uploaded asset", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}

	asset := media.NewAsset(header.Filename, header.Header.Get("Content-Type"), data)
	snap, err := s.AttachAsset(asset)
	h.reply(c, snap, err)
}

func (h *WizardHandler) DetachAsset(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	snap, err := s.DetachAsset()
	h.reply(c, snap, err)
}

func (h *WizardHandler) Validation(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	result, err := s.Validation()
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": result.OK(), "reasons": result.Reasons, "warnings": result.Warnings})
}

func (h *WizardHandler) Submit(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	snap, err := s.Submit(c.Request.Context())
	if err != nil {
		h.logger.Warn("submission failed", zap.String("session_id", s.ID()), zap.Error(err))
	}
	h.reply(c, snap, err)
}
