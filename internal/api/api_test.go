package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"whatsapp-template-studio/internal/approval"
	"whatsapp-template-studio/internal/database"
	"whatsapp-template-studio/internal/models"
	"whatsapp-template-studio/internal/submission"
	"whatsapp-template-studio/internal/template"
	"whatsapp-template-studio/internal/wizard"
)

type stubGenerator struct {
	candidates []template.Template
	analysis   wizard.Analysis
}

func (g *stubGenerator) Generate(context.Context, string) ([]template.Template, error) {
	return g.candidates, nil
}

func (g *stubGenerator) Analyze(context.Context, string) (wizard.Analysis, error) {
	return g.analysis, nil
}

type stubSubmitter struct {
	mu       sync.Mutex
	err      error
	payloads []submission.Payload
}

func (s *stubSubmitter) Submit(_ context.Context, p submission.Payload) (submission.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return submission.Record{}, s.err
	}
	s.payloads = append(s.payloads, p)
	return submission.Record{TemplateName: p.Template.Name, TemplateID: "1"}, nil
}

type pendingChecker struct{}

func (pendingChecker) CheckStatus(context.Context, string) (approval.Status, error) {
	return approval.Pending, nil
}

type testServer struct {
	router  *gin.Engine
	records *database.Records
	sub     *stubSubmitter
	gen     *stubGenerator
}

func newTestServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)

	db, err := database.ConnectSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	gen := &stubGenerator{candidates: []template.Template{{
		Name:       "promo_1",
		Language:   "en",
		Category:   template.CategoryMarketing,
		Components: template.Components{template.Body{Text: "Hello {{1}}"}},
	}}}
	ts := &testServer{
		records: database.NewRecords(db),
		sub:     &stubSubmitter{},
		gen:     gen,
	}
	backend := wizard.Backend{
		Generator:  ts.gen,
		Submitters: map[wizard.Variant]submission.Submitter{wizard.Customize: ts.sub, wizard.Analyze: ts.sub},
		Checker:    pendingChecker{},
	}
	registry := wizard.NewRegistry(backend, wizard.Config{PollInterval: time.Hour}, nil, zap.NewNop())
	t.Cleanup(registry.Close)

	ts.router = NewRouter(Deps{Registry: registry, Records: ts.records, Logger: zap.NewNop()})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (ts *testServer) create(t *testing.T, variant string) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/wizards", gin.H{"variant": variant})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[wizard.Snapshot](t, w).ID
}

func TestCustomizeOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t, "customize")
	base := "/api/wizards/" + id

	w := ts.do(t, http.MethodPost, base+"/requirements", gin.H{"requirements": "weekend sale"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, wizard.StepSelect, decode[wizard.Snapshot](t, w).Step)

	w = ts.do(t, http.MethodPost, base+"/select", gin.H{"index": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPut, base+"/fields", gin.H{"field": "name", "value": "summer_sale"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPost, base+"/buttons", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = ts.do(t, http.MethodPut, base+"/buttons/0", gin.H{"text": "Shop now"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap := decode[wizard.Snapshot](t, w)
	require.NotNil(t, snap.Draft)
	assert.Equal(t, 1, template.ButtonCount(*snap.Draft))

	w = ts.do(t, http.MethodGet, base+"/validation", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":true`)

	w = ts.do(t, http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, wizard.StepSubmit, decode[wizard.Snapshot](t, w).Step)

	w = ts.do(t, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap = decode[wizard.Snapshot](t, w)
	assert.Equal(t, wizard.StepRequirements, snap.Step)
	require.NotNil(t, snap.Submission)
	assert.Equal(t, "summer_sale", snap.Submission.TemplateName)
	require.Len(t, ts.sub.payloads, 1)

	w = ts.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/wizards", gin.H{"variant": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/wizards/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	id := ts.create(t, "")
	base := "/api/wizards/" + id

	w = ts.do(t, http.MethodPost, base+"/requirements", gin.H{"requirements": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "no draft yet")

	w = ts.do(t, http.MethodPost, base+"/requirements", gin.H{"requirements": "weekend sale"})
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, http.MethodPost, base+"/select", gin.H{"index": 0})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPut, base+"/components/x", gin.H{"field": "text", "value": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.do(t, http.MethodPut, base+"/components/9", gin.H{"field": "text", "value": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.do(t, http.MethodPut, base+"/fields", gin.H{"field": "name", "value": "Not Valid"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.sub.err = &submission.BackendError{StatusCode: 400, Message: "Template name already exists", Suggestion: "Pick another name"}
	w = ts.do(t, http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "Template name already exists", body["error"])
	assert.Equal(t, "Pick another name", body["suggestion"])
	assert.NotNil(t, body["session"], "the untouched draft comes back with the error")
}

func uploadAsset(t *testing.T, ts *testServer, path, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func TestAnalyzeMediaOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ts.gen.analysis = wizard.Analysis{
		Recommendation: wizard.CreateNew,
		NewTemplate: &template.Template{
			Name:       "launch_promo",
			Language:   "en",
			Category:   template.CategoryMarketing,
			Components: template.Components{template.Body{Text: "Launch day"}},
		},
		NeedsMedia: true,
		MediaType:  "image",
	}
	id := ts.create(t, "analyze")
	base := "/api/wizards/" + id

	w := ts.do(t, http.MethodPost, base+"/requirements", gin.H{"requirements": "product launch"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap := decode[wizard.Snapshot](t, w)
	assert.Equal(t, wizard.StepEdit, snap.Step)
	assert.Equal(t, "image/*", snap.MediaAccept)

	w = ts.do(t, http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "analyze submits from preview")

	w = ts.do(t, http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, wizard.StepPreview, decode[wizard.Snapshot](t, w).Step)

	w = ts.do(t, http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Empty(t, ts.sub.payloads)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	w = uploadAsset(t, ts, base+"/media/asset", "banner.png", png)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap = decode[wizard.Snapshot](t, w)
	require.NotNil(t, snap.Media.Asset)
	assert.Equal(t, "image/png", snap.Media.Asset.MimeType)

	w = ts.do(t, http.MethodPut, base+"/media/type", gin.H{"format": "video"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, decode[wizard.Snapshot](t, w).Media.Asset, "changing type clears the asset")

	w = ts.do(t, http.MethodPut, base+"/media/type", gin.H{"format": "gif"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, base+"/media/type", gin.H{"format": "image"})
	require.Equal(t, http.StatusOK, w.Code)
	w = uploadAsset(t, ts, base+"/media/asset", "banner.png", png)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap = decode[wizard.Snapshot](t, w)
	assert.Equal(t, wizard.StepApproval, snap.Step)
	require.NotNil(t, snap.Approval)
	assert.Equal(t, approval.Pending, snap.Approval.Status)

	require.Len(t, ts.sub.payloads, 1)
	require.NotNil(t, ts.sub.payloads[0].Asset)
	assert.Equal(t, "banner.png", ts.sub.payloads[0].Asset.Filename)
}

func TestSubmissionsEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, ts.records.CreateSubmission(ctx, &models.Submission{TemplateName: "promo_1", Variant: "analyze"}))
	require.NoError(t, ts.records.RecordCheck(ctx, "promo_1", "PENDING", "", "poller"))

	w := ts.do(t, http.MethodGet, "/api/submissions?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Submission](t, w), 1)

	w = ts.do(t, http.MethodGet, "/api/submissions/promo_1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[models.Submission](t, w)
	assert.Equal(t, "PENDING", got.Status)
	assert.Len(t, got.Checks, 1)

	w = ts.do(t, http.MethodGet, "/api/submissions/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodOptions, "/api/wizards", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), "PUT"))
}
