package models

// Webhook fields the studio subscribes to
const (
	FieldTemplateStatusUpdate  = "message_template_status_update"
	FieldTemplateQualityUpdate = "message_template_quality_update"
)

// WebhookPayload represents the incoming JSON payload from WhatsApp
type WebhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Time    int64  `json:"time"`
		Changes []struct {
			Value TemplateUpdate `json:"value"`
			Field string         `json:"field"`
		} `json:"changes"`
	} `json:"entry"`
}

// TemplateUpdate is the value of a template status or quality change
type TemplateUpdate struct {
	Event                   string `json:"event,omitempty"` // APPROVED, REJECTED, PENDING, PAUSED, DISABLED...
	MessageTemplateID       int64  `json:"message_template_id"`
	MessageTemplateName     string `json:"message_template_name"`
	MessageTemplateLanguage string `json:"message_template_language"`
	Reason                  string `json:"reason,omitempty"`

	PreviousQualityScore string `json:"previous_quality_score,omitempty"`
	NewQualityScore      string `json:"new_quality_score,omitempty"`
}

// TemplateStatusChange is a flattened status update
type TemplateStatusChange struct {
	TemplateID   int64
	TemplateName string
	Language     string
	Status       string
	Reason       string
}

// StatusChanges returns every template status update carried by p, in order.
func (p WebhookPayload) StatusChanges() []TemplateStatusChange {
	var out []TemplateStatusChange
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if change.Field != FieldTemplateStatusUpdate || change.Value.MessageTemplateName == "" {
				continue
			}
			v := change.Value
			out = append(out, TemplateStatusChange{
				TemplateID:   v.MessageTemplateID,
				TemplateName: v.MessageTemplateName,
				Language:     v.MessageTemplateLanguage,
				Status:       v.Event,
				Reason:       v.Reason,
			})
		}
	}
	return out
}
