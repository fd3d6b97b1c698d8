package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"whatsapp-template-studio/internal/approval"
	"whatsapp-template-studio/internal/config"
	"whatsapp-template-studio/internal/submission"
	"whatsapp-template-studio/internal/template"
)

// Client talks to the WhatsApp Business Management API directly. It submits
// templates, reads their review status and creates flows.
type Client struct {
	Config *config.Config
	http   *http.Client
	logger *zap.Logger
}

func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		Config: cfg,
		http:   &http.Client{Timeout: cfg.HTTPTimeout},
		logger: logger.Named("whatsapp"),
	}
}

// --- Graph API Structures ---

type TemplateRequest struct {
	Name       string              `json:"name"`
	Language   template.Language   `json:"language"`
	Category   template.Category   `json:"category"`
	Components template.Components `json:"components"`
}

type TemplateResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Category string `json:"category"`
}

type TemplateList struct {
	Data []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Status   string `json:"status"`
		Language string `json:"language"`
	} `json:"data"`
}

type FlowCreateRequest struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
}

type uploadSession struct {
	ID string `json:"id"`
}

type uploadHandle struct {
	H string `json:"h"`
}

// GraphError is the error object the Graph API returns.
type GraphError struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		UserTitle    string `json:"error_user_title"`
		UserMessage  string `json:"error_user_msg"`
		FBTraceID    string `json:"fbtrace_id"`
		ErrorSubcode int    `json:"error_subcode"`
	} `json:"error"`
}

// --- Helper Functions ---

func (c *Client) sendRequest(ctx context.Context, method, url string, body io.Reader, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+c.Config.WhatsAppToken)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		c.logger.Warn("graph api error",
			zap.String("path", req.URL.Path),
			zap.Int("status_code", resp.StatusCode),
			zap.ByteString("body", respBody))
		return graphFailure(resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode %s: %w", req.URL.Path, err)
		}
	}
	return nil
}

func (c *Client) sendJSON(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.sendRequest(ctx, method, url, bytes.NewReader(data), map[string]string{"Content-Type": "application/json"}, out)
}

func graphFailure(code int, body []byte) error {
	var ge GraphError
	if err := json.Unmarshal(body, &ge); err != nil || ge.Error.Message == "" {
		return &submission.BackendError{StatusCode: code, Message: fmt.Sprintf("graph api error %d: %s", code, string(body))}
	}
	msg := ge.Error.Message
	if ge.Error.UserTitle != "" {
		msg = ge.Error.UserTitle + ": " + msg
	}
	return &submission.BackendError{StatusCode: code, Message: msg, Suggestion: ge.Error.UserMessage}
}

// --- Template Management Methods ---

// Submit creates the template. A media header gets its sample uploaded first
// and referenced through header_handle.
func (c *Client) Submit(ctx context.Context, p submission.Payload) (submission.Record, error) {
	tmpl := p.Template
	if p.Asset != nil {
		handle, err := c.UploadSample(ctx, p.Asset.Data, p.Asset.MimeType, p.Asset.Filename)
		if err != nil {
			return submission.Record{}, fmt.Errorf("upload header sample: %w", err)
		}
		tmpl = withHeaderHandle(tmpl, handle)
	}

	req := TemplateRequest{
		Name:       tmpl.Name,
		Language:   tmpl.Language,
		Category:   tmpl.Category,
		Components: tmpl.Components,
	}
	var resp TemplateResponse
	endpoint := c.Config.GraphURL(c.Config.WhatsAppBusinessAccountID + "/message_templates")
	if err := c.sendJSON(ctx, http.MethodPost, endpoint, req, &resp); err != nil {
		return submission.Record{}, err
	}

	c.logger.Info("template created", zap.String("template_name", tmpl.Name), zap.String("template_id", resp.ID), zap.String("status", resp.Status))
	return submission.Record{TemplateName: tmpl.Name, TemplateID: resp.ID}, nil
}

func withHeaderHandle(t template.Template, handle string) template.Template {
	out := template.Clone(t)
	if h, i, ok := out.Header(); ok {
		h.Example = &template.HeaderExample{HeaderHandle: []string{handle}}
		out.Components[i] = h
	}
	return out
}

// CheckStatus looks the template up by name.
func (c *Client) CheckStatus(ctx context.Context, templateName string) (approval.Status, error) {
	q := url.Values{}
	q.Set("name", templateName)
	q.Set("fields", "id,name,status,language")
	endpoint := c.Config.GraphURL(c.Config.WhatsAppBusinessAccountID+"/message_templates") + "?" + q.Encode()

	var list TemplateList
	if err := c.sendRequest(ctx, http.MethodGet, endpoint, nil, nil, &list); err != nil {
		return "", err
	}
	for _, t := range list.Data {
		if t.Name == templateName {
			return approval.ParseStatus(t.Status), nil
		}
	}
	return "", fmt.Errorf("template %q not found", templateName)
}

// --- Media Methods ---

// UploadSample runs a resumable upload and returns the file handle the
// template API expects as a media header example.
func (c *Client) UploadSample(ctx context.Context, data []byte, mimeType, filename string) (string, error) {
	q := url.Values{}
	q.Set("file_length", strconv.Itoa(len(data)))
	q.Set("file_type", mimeType)
	q.Set("file_name", filename)
	endpoint := c.Config.GraphURL(c.Config.MetaAppID+"/uploads") + "?" + q.Encode()

	var session uploadSession
	if err := c.sendRequest(ctx, http.MethodPost, endpoint, nil, nil, &session); err != nil {
		return "", err
	}

	var handle uploadHandle
	headers := map[string]string{
		"Authorization": "OAuth " + c.Config.WhatsAppToken,
		"file_offset":   "0",
		"Content-Type":  "application/octet-stream",
	}
	if err := c.sendRequest(ctx, http.MethodPost, c.Config.GraphURL(session.ID), bytes.NewReader(data), headers, &handle); err != nil {
		return "", err
	}
	if handle.H == "" {
		return "", fmt.Errorf("upload %s returned no handle", session.ID)
	}
	return handle.H, nil
}

// --- Flow Management Methods ---

// CreateFlow creates a draft flow named after the approved template. The
// outline is recorded in the logs for whoever builds the flow screens.
func (c *Client) CreateFlow(ctx context.Context, flow approval.FlowRequest) (string, error) {
	req := FlowCreateRequest{
		Name:       flow.TemplateName + "_flow",
		Categories: []string{"OTHER"},
	}
	var resp struct {
		ID string `json:"id"`
	}
	endpoint := c.Config.GraphURL(c.Config.WhatsAppBusinessAccountID + "/flows")
	if err := c.sendJSON(ctx, http.MethodPost, endpoint, req, &resp); err != nil {
		return "", err
	}

	c.logger.Info("flow created",
		zap.String("flow_id", resp.ID),
		zap.String("template_name", flow.TemplateName),
		zap.String("outline", flow.SuggestedFlow.Description),
		zap.Strings("steps", flow.SuggestedFlow.Steps))
	return resp.ID, nil
}
