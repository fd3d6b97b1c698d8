package models

import (
	"time"
)

// Submission is one template sent for review and what became of it
type Submission struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	SessionID    string     `gorm:"type:varchar(64);index" json:"session_id"`
	Variant      string     `gorm:"type:varchar(20)" json:"variant"`
	TemplateName string     `gorm:"type:varchar(512);index;not null" json:"template_name"`
	TemplateID   string     `gorm:"type:varchar(255)" json:"template_id"`
	Language     string     `gorm:"type:varchar(20)" json:"language"`
	Category     string     `gorm:"type:varchar(50)" json:"category"`
	Requirements string     `gorm:"type:text" json:"requirements"`
	Components   string     `gorm:"type:text" json:"components"` // JSON of the submitted template
	RemoveMedia  bool       `json:"remove_media"`
	MediaType    string     `gorm:"type:varchar(20)" json:"media_type"`
	Status       string     `gorm:"type:varchar(20);default:PENDING" json:"status"`
	FlowID       string     `gorm:"type:varchar(255)" json:"flow_id"`
	FlowError    string     `gorm:"type:text" json:"flow_error"`
	DecidedAt    *time.Time `json:"decided_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Asset  *MediaAsset   `gorm:"foreignKey:SubmissionID;constraint:OnDelete:CASCADE;" json:"asset,omitempty"`
	Checks []StatusCheck `gorm:"foreignKey:SubmissionID;constraint:OnDelete:CASCADE;" json:"checks,omitempty"`
}

func (Submission) TableName() string {
	return "submissions"
}

// StatusCheck is one approval poll result, or its failure
type StatusCheck struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"index" json:"submission_id"`
	TemplateName string    `gorm:"type:varchar(512);index" json:"template_name"`
	Status       string    `gorm:"type:varchar(20)" json:"status"`
	Error        string    `gorm:"type:text" json:"error,omitempty"`
	Source       string    `gorm:"type:varchar(20)" json:"source"` // poller or webhook
	CheckedAt    time.Time `gorm:"autoCreateTime" json:"checked_at"`
}

func (StatusCheck) TableName() string {
	return "status_checks"
}

// MediaAsset is the header sample that went out with a submission
type MediaAsset struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"uniqueIndex" json:"submission_id"`
	Filename     string    `gorm:"type:varchar(255)" json:"filename"`
	MimeType     string    `gorm:"type:varchar(100)" json:"mime_type"`
	FileSize     int64     `json:"file_size"`
	Data         []byte    `json:"-"`
	UploadedAt   time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
}

func (MediaAsset) TableName() string {
	return "media_assets"
}

// SystemSetting holds credentials edited at runtime; they win over the env
type SystemSetting struct {
	Key       string    `gorm:"primaryKey;type:varchar(100)" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SystemSetting) TableName() string {
	return "system_settings"
}

// All lists every model, in dependency order.
func All() []any {
	return []any{
		&Submission{},
		&StatusCheck{},
		&MediaAsset{},
		&SystemSetting{},
	}
}
