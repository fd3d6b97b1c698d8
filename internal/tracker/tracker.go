// Package tracker persists submissions and approval progress and pushes them
// to websocket clients.
package tracker

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"whatsapp-template-studio/internal/approval"
	"whatsapp-template-studio/internal/database"
	"whatsapp-template-studio/internal/models"
	"whatsapp-template-studio/internal/ws"
	"whatsapp-template-studio/internal/wizard"
)

const writeTimeout = 5 * time.Second

type Broadcaster interface {
	BroadcastEvent(eventType string, data any)
}

// ApprovalUpdate is the websocket payload for approval progress.
type ApprovalUpdate struct {
	SessionID    string `json:"session_id,omitempty"`
	TemplateName string `json:"template_name"`
	TemplateID   string `json:"template_id,omitempty"`
	Kind         string `json:"kind"`
	Status       string `json:"status"`
	FlowID       string `json:"flow_id,omitempty"`
	Error        string `json:"error,omitempty"`
}

type Tracker struct {
	records *database.Records
	hub     Broadcaster
	logger  *zap.Logger
}

func New(records *database.Records, hub Broadcaster, logger *zap.Logger) *Tracker {
	return &Tracker{records: records, hub: hub, logger: logger.Named("tracker")}
}

var _ wizard.Observer = (*Tracker)(nil)

func (t *Tracker) Submitted(ctx context.Context, s wizard.Submitted) {
	components, err := json.Marshal(s.Payload.Template)
	if err != nil {
		t.logger.Error("marshal submitted template", zap.Error(err))
	}

	tmpl := s.Payload.Template
	row := &models.Submission{
		SessionID:    s.SessionID,
		Variant:      string(s.Variant),
		TemplateName: s.Record.TemplateName,
		TemplateID:   s.Record.TemplateID,
		Language:     string(tmpl.Language),
		Category:     string(tmpl.Category),
		Requirements: s.Requirements,
		Components:   string(components),
		RemoveMedia:  s.Payload.RemoveMedia,
		MediaType:    string(tmpl.MediaType()),
		Status:       string(approval.Pending),
	}
	if a := s.Payload.Asset; a != nil {
		row.Asset = &models.MediaAsset{
			Filename: a.Filename,
			MimeType: a.MimeType,
			FileSize: int64(a.Size),
			Data:     a.Data,
		}
	}

	// The caller's context may end with the HTTP request.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := t.records.CreateSubmission(wctx, row); err != nil {
		t.logger.Error("store submission", zap.String("template_name", row.TemplateName), zap.Error(err))
	}

	t.hub.BroadcastEvent(ws.EventSubmissionCreated, row)
}

func (t *Tracker) ApprovalEvent(sessionID string, e approval.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	name := e.Record.TemplateName
	update := ApprovalUpdate{
		SessionID:    sessionID,
		TemplateName: name,
		TemplateID:   e.Record.TemplateID,
		Kind:         string(e.Kind),
		Status:       string(e.Status),
		FlowID:       e.FlowID,
	}
	if e.Err != nil {
		update.Error = e.Err.Error()
	}

	var err error
	switch e.Kind {
	case approval.EventStatusChecked:
		err = t.records.RecordCheck(ctx, name, string(e.Status), "", "poller")
	case approval.EventCheckFailed:
		err = t.records.RecordCheck(ctx, name, "", update.Error, "poller")
	case approval.EventStatusChanged:
		err = t.records.UpdateStatus(ctx, name, string(e.Status))
	case approval.EventFlowCreated:
		err = t.records.SetFlow(ctx, name, e.FlowID, "")
	case approval.EventFlowFailed:
		err = t.records.SetFlow(ctx, name, "", update.Error)
	}
	if err != nil {
		t.logger.Warn("store approval event", zap.String("template_name", name), zap.String("kind", string(e.Kind)), zap.Error(err))
	}

	if e.Kind != approval.EventStatusChecked {
		t.hub.BroadcastEvent(ws.EventApprovalUpdate, update)
	}
}

// TemplateStatus records a status pushed by the provider webhook.
func (t *Tracker) TemplateStatus(ctx context.Context, templateName, status, reason string) {
	parsed := approval.ParseStatus(status)
	if err := t.records.RecordCheck(ctx, templateName, status, reason, "webhook"); err != nil {
		t.logger.Warn("store webhook status", zap.String("template_name", templateName), zap.Error(err))
	}
	if err := t.records.UpdateStatus(ctx, templateName, string(parsed)); err != nil {
		t.logger.Warn("update webhook status", zap.String("template_name", templateName), zap.Error(err))
	}

	t.hub.BroadcastEvent(ws.EventTemplateStatus, ApprovalUpdate{
		TemplateName: templateName,
		Kind:         "webhook",
		Status:       string(parsed),
		Error:        reason,
	})
}
