// Package studio talks to the template studio backend: generation, analysis,
// submission, status checks and flow creation.
package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"whatsapp-template-studio/internal/approval"
	"whatsapp-template-studio/internal/submission"
	"whatsapp-template-studio/internal/template"
	"whatsapp-template-studio/internal/wizard"
)

const (
	generatePath      = "/api/template-generator/generate/"
	customizeSubmit   = "/api/template-generator/submit/"
	analyzePath       = "/api/template-flow/analyze/"
	analyzeSubmit     = "/api/template-flow/submit/"
	statusPathFormat  = "/api/template-flow/status/%s/"
	createFlowPath    = "/api/template-flow/create-flow/"
	statusSuccess     = "success"
	maxErrorBodyBytes = 512
)

type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named("studio"),
	}
}

// envelope is the common shape of every studio response.
type envelope struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	Error      string `json:"error"`
	Suggestion string `json:"suggestion"`
}

func (e envelope) failure(code int) error {
	msg := e.Message
	if msg == "" {
		msg = e.Error
	}
	if msg == "" {
		msg = fmt.Sprintf("studio backend answered %d with status %q", code, e.Status)
	}
	return &submission.BackendError{StatusCode: code, Message: msg, Suggestion: e.Suggestion}
}

func (c *Client) sendRequest(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", req.URL.Path, err)
	}

	var env envelope
	if len(body) > 0 {
		if err := json.Unmarshal(body, &env); err != nil {
			if resp.StatusCode >= 400 {
				return &submission.BackendError{StatusCode: resp.StatusCode, Message: truncate(string(body))}
			}
			return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
		}
	}
	if resp.StatusCode >= 400 || env.Status != statusSuccess {
		c.logger.Warn("studio request failed",
			zap.String("path", req.URL.Path),
			zap.Int("status_code", resp.StatusCode),
			zap.String("message", env.Message))
		return env.failure(resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
		}
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.sendRequest(req, out)
}

type requirementsRequest struct {
	Requirements string `json:"requirements"`
}

func (c *Client) Generate(ctx context.Context, requirements string) ([]template.Template, error) {
	var resp struct {
		Templates []template.Template `json:"templates"`
	}
	if err := c.postJSON(ctx, generatePath, requirementsRequest{requirements}, &resp); err != nil {
		return nil, err
	}
	return resp.Templates, nil
}

func (c *Client) Analyze(ctx context.Context, requirements string) (wizard.Analysis, error) {
	var resp struct {
		Analysis wizard.Analysis `json:"analysis"`
	}
	if err := c.postJSON(ctx, analyzePath, requirementsRequest{requirements}, &resp); err != nil {
		return wizard.Analysis{}, err
	}
	return resp.Analysis, nil
}

// Submitter returns the submitter for a wizard variant.
func (c *Client) Submitter(v wizard.Variant) submission.Submitter {
	path := customizeSubmit
	if v == wizard.Analyze {
		path = analyzeSubmit
	}
	return &submitter{client: c, path: path}
}

type submitter struct {
	client *Client
	path   string
}

func (s *submitter) Submit(ctx context.Context, p submission.Payload) (submission.Record, error) {
	templateData, err := TemplateData(p)
	if err != nil {
		return submission.Record{}, err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("template_data", string(templateData)); err != nil {
		return submission.Record{}, err
	}
	if p.Asset != nil {
		part, err := writer.CreateFormFile("media_file", p.Asset.Filename)
		if err != nil {
			return submission.Record{}, err
		}
		if _, err := part.Write(p.Asset.Data); err != nil {
			return submission.Record{}, err
		}
	}
	if err := writer.Close(); err != nil {
		return submission.Record{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.baseURL+s.path, body)
	if err != nil {
		return submission.Record{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp struct {
		TemplateID   flexibleID `json:"template_id"`
		TemplateName string     `json:"template_name"`
	}
	if err := s.client.sendRequest(req, &resp); err != nil {
		return submission.Record{}, err
	}
	return submission.Record{TemplateName: resp.TemplateName, TemplateID: string(resp.TemplateID)}, nil
}

// TemplateData is the template_data form field: the active template plus the
// remove_media flag.
func TemplateData(p submission.Payload) ([]byte, error) {
	raw, err := json.Marshal(p.Template)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["remove_media"] = json.RawMessage(fmt.Sprintf("%t", p.RemoveMedia))
	return json.Marshal(fields)
}

func (c *Client) CheckStatus(ctx context.Context, templateName string) (approval.Status, error) {
	path := fmt.Sprintf(statusPathFormat, url.PathEscape(templateName))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", err
	}
	var resp struct {
		TemplateStatus string `json:"template_status"`
	}
	if err := c.sendRequest(req, &resp); err != nil {
		return "", err
	}
	return approval.ParseStatus(resp.TemplateStatus), nil
}

func (c *Client) CreateFlow(ctx context.Context, flow approval.FlowRequest) (string, error) {
	var resp struct {
		Flow struct {
			ID flexibleID `json:"id"`
		} `json:"flow"`
	}
	if err := c.postJSON(ctx, createFlowPath, flow, &resp); err != nil {
		return "", err
	}
	if resp.Flow.ID == "" {
		return "", &submission.BackendError{Message: "flow created without an id"}
	}
	return string(resp.Flow.ID), nil
}

// flexibleID accepts ids sent as JSON strings or numbers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*f = flexibleID(str)
		return nil
	}
	*f = flexibleID(s)
	return nil
}

func truncate(s string) string {
	if len(s) > maxErrorBodyBytes {
		return s[:maxErrorBodyBytes]
	}
	return s
}
