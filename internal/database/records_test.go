package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"whatsapp-template-studio/internal/config"
	"whatsapp-template-studio/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := ConnectSQLite(filepath.Join(t.TempDir(), "studio.db"))
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestSubmissionLifecycle(t *testing.T) {
	ctx := context.Background()
	records := NewRecords(openTestDB(t))

	sub := &models.Submission{
		SessionID:    "s-1",
		Variant:      "analyze",
		TemplateName: "promo_1",
		TemplateID:   "991",
		Components:   `[{"type":"BODY","text":"Hi"}]`,
		MediaType:    "IMAGE",
		Asset:        &models.MediaAsset{Filename: "banner.png", MimeType: "image/png", FileSize: 3, Data: []byte("png")},
	}
	require.NoError(t, records.CreateSubmission(ctx, sub))
	assert.Equal(t, "PENDING", sub.Status)

	require.NoError(t, records.RecordCheck(ctx, "promo_1", "PENDING", "", "poller"))
	require.NoError(t, records.RecordCheck(ctx, "promo_1", "", "timeout", "poller"))
	require.NoError(t, records.UpdateStatus(ctx, "promo_1", "APPROVED"))
	require.NoError(t, records.SetFlow(ctx, "promo_1", "flow-1", ""))

	got, err := records.GetSubmission(ctx, "promo_1")
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", got.Status)
	assert.NotNil(t, got.DecidedAt)
	assert.Equal(t, "flow-1", got.FlowID)
	require.NotNil(t, got.Asset)
	assert.Equal(t, []byte("png"), got.Asset.Data)
	require.Len(t, got.Checks, 2)
	assert.Equal(t, "timeout", got.Checks[1].Error)
}

func TestLatestSubmissionWins(t *testing.T) {
	ctx := context.Background()
	records := NewRecords(openTestDB(t))

	require.NoError(t, records.CreateSubmission(ctx, &models.Submission{TemplateName: "promo_1", TemplateID: "1"}))
	require.NoError(t, records.CreateSubmission(ctx, &models.Submission{TemplateName: "promo_1", TemplateID: "2"}))
	require.NoError(t, records.UpdateStatus(ctx, "promo_1", "REJECTED"))

	got, err := records.GetSubmission(ctx, "promo_1")
	require.NoError(t, err)
	assert.Equal(t, "2", got.TemplateID)
	assert.Equal(t, "REJECTED", got.Status)

	list, err := records.ListSubmissions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestDecisionIsNotRevertedToPending(t *testing.T) {
	ctx := context.Background()
	records := NewRecords(openTestDB(t))

	require.NoError(t, records.CreateSubmission(ctx, &models.Submission{TemplateName: "promo_1"}))
	require.NoError(t, records.UpdateStatus(ctx, "promo_1", "APPROVED"))
	require.NoError(t, records.UpdateStatus(ctx, "promo_1", "PENDING"))

	got, err := records.GetSubmission(ctx, "promo_1")
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", got.Status)

	// A later decision still lands.
	require.NoError(t, records.UpdateStatus(ctx, "promo_1", "REJECTED"))
	got, err = records.GetSubmission(ctx, "promo_1")
	require.NoError(t, err)
	assert.Equal(t, "REJECTED", got.Status)
}

func TestNotFound(t *testing.T) {
	records := NewRecords(openTestDB(t))
	_, err := records.GetSubmission(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, records.UpdateStatus(context.Background(), "nope", "APPROVED"), ErrNotFound)
}

func TestSyncConfig(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Create(&models.SystemSetting{Key: "WABA_ID", Value: "from-db"}).Error)

	cfg := &config.Config{WhatsAppBusinessAccountID: "from-env", VerifyToken: "verify-me"}
	require.NoError(t, SyncConfig(db, cfg, zap.NewNop()))
	assert.Equal(t, "from-db", cfg.WhatsAppBusinessAccountID)

	var saved models.SystemSetting
	require.NoError(t, db.Where("key = ?", "VERIFY_TOKEN").First(&saved).Error)
	assert.Equal(t, "verify-me", saved.Value)
}
