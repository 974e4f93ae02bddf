package courrier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ouvrio/courrier/template"
)

// DiagnosticStep is the outcome of one stage of a diagnostic run.
type DiagnosticStep struct {
	StepName    string         `json:"step_name"`
	Success     bool           `json:"success"`
	Message     string         `json:"message"`
	Detail      map[string]any `json:"detail,omitempty"`
	ErrorDetail string         `json:"error_detail,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
}

// DiagnosticsReport is one full diagnostic run plus the presentation
// aggregate computed over it.
type DiagnosticsReport struct {
	Overall string           `json:"overall"`
	Steps   []DiagnosticStep `json:"steps"`
}

// DispatchRecord is the public shape of one audited dispatch attempt.
type DispatchRecord struct {
	MessageId       string    `json:"message_id"`
	TemplateId      string    `json:"template_id"`
	Recipient       string    `json:"recipient"`
	RenderedSubject string    `json:"rendered_subject"`
	SourceEventRef  string    `json:"source_event_ref"`
	Status          string    `json:"status"`
	ErrorDetail     string    `json:"error_detail,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func NewClient(apiKey string, host string) *Client {
	host = strings.TrimRight(host, "/")
	return &Client{
		host:   host,
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Client talks to a courrierd instance over its operator API.
type Client struct {
	host   string
	apiKey string
	client *http.Client
}

type DispatchRequest struct {
	TemplateId     string        `json:"template_id"`
	Recipient      string        `json:"recipient"`
	Variables      template.Vars `json:"variables"`
	SourceEventRef string        `json:"source_event_ref"`
}

func (c *Client) Dispatch(ctx context.Context, req DispatchRequest) (DispatchResult, error) {
	var res DispatchResult
	err := c.do(ctx, http.MethodPost, "/dispatch", nil, req, &res)
	return res, err
}

func (c *Client) RunDiagnostics(ctx context.Context, testRecipient string) (DiagnosticsReport, error) {
	var report DiagnosticsReport
	q := url.Values{}
	if testRecipient != "" {
		q.Set("recipient", testRecipient)
	}
	err := c.do(ctx, http.MethodPost, "/diagnostics", q, nil, &report)
	return report, err
}

func (c *Client) History(ctx context.Context) ([]DispatchRecord, error) {
	var records []DispatchRecord
	err := c.do(ctx, http.MethodGet, "/history", nil, nil, &records)
	return records, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("key", c.apiKey)

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.host+path+"?"+query.Encode(), body)
	if err != nil {
		return err
	}
	req.Header.Add("content-type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api responded with %d, %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
