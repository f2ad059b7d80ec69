// Package publish exports generated documents to a Confluence wiki.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ashureev/analystai/internal/domain"
)

// ErrNotConfigured is returned when Confluence settings are incomplete.
var ErrNotConfigured = errors.New("confluence export is not configured")

const maxErrorBody = 500

// Action tells whether publishing created a page or updated an existing one.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// Result describes a published page.
type Result struct {
	URL    string `json:"url"`
	Action Action `json:"action"`
	Title  string `json:"title"`
}

// Config holds Confluence connection settings.
type Config struct {
	BaseURL      string
	SpaceKey     string
	ParentPageID string
	Email        string
	APIToken     string
	HTTPClient   *http.Client
}

// Configured reports whether every required setting is present.
func (c Config) Configured() bool {
	return c.BaseURL != "" && c.SpaceKey != "" && c.Email != "" && c.APIToken != ""
}

// ConfluenceClient publishes bundles through the Confluence REST content API.
type ConfluenceClient struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewConfluenceClient returns ErrNotConfigured when cfg is incomplete.
func NewConfluenceClient(cfg Config, logger *slog.Logger) (*ConfluenceClient, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &ConfluenceClient{
		cfg:        cfg,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}, nil
}

type pageVersion struct {
	Number int `json:"number"`
}

type pageLinks struct {
	Base  string `json:"base,omitempty"`
	WebUI string `json:"webui,omitempty"`
}

type page struct {
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	Version pageVersion `json:"version"`
	Links   pageLinks   `json:"_links"`
}

type searchResponse struct {
	Results []page    `json:"results"`
	Links   pageLinks `json:"_links"`
}

type storageBody struct {
	Value          string `json:"value"`
	Representation string `json:"representation"`
}

type pageRequest struct {
	ID        string              `json:"id,omitempty"`
	Type      string              `json:"type"`
	Title     string              `json:"title"`
	Space     map[string]string   `json:"space"`
	Ancestors []map[string]string `json:"ancestors,omitempty"`
	Version   *pageVersion        `json:"version,omitempty"`
	Body      struct {
		Storage storageBody `json:"storage"`
	} `json:"body"`
}

// Publish creates a page titled title in the configured space, or updates the page that
// already carries that title. A blank title falls back to a timestamped one.
func (c *ConfluenceClient) Publish(ctx context.Context, bundle *domain.DocumentBundle, title string) (*Result, error) {
	if bundle == nil {
		return nil, &domain.PublicationError{Err: errors.New("missing generated documents to export")}
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = FallbackTitle(c.now())
	}

	existing, err := c.findPage(ctx, title)
	if err != nil {
		return nil, &domain.PublicationError{Err: err}
	}

	req := pageRequest{
		Type:  "page",
		Title: title,
		Space: map[string]string{"key": c.cfg.SpaceKey},
	}
	req.Body.Storage = storageBody{Value: StorageFormat(bundle), Representation: "storage"}

	var (
		saved  page
		action Action
	)
	if existing != nil {
		req.ID = existing.ID
		req.Version = &pageVersion{Number: existing.Version.Number + 1}
		err = c.do(ctx, http.MethodPut, "/rest/api/content/"+url.PathEscape(existing.ID), req, &saved)
		action = ActionUpdated
	} else {
		if c.cfg.ParentPageID != "" {
			req.Ancestors = []map[string]string{{"id": c.cfg.ParentPageID}}
		}
		err = c.do(ctx, http.MethodPost, "/rest/api/content", req, &saved)
		action = ActionCreated
	}
	if err != nil {
		return nil, &domain.PublicationError{Err: err}
	}

	result := &Result{URL: c.pageURL(saved), Action: action, Title: title}
	c.logger.Info("Published documents to Confluence",
		"page_id", saved.ID,
		"action", action,
		"title", title)
	return result, nil
}

func (c *ConfluenceClient) findPage(ctx context.Context, title string) (*page, error) {
	q := url.Values{}
	q.Set("spaceKey", c.cfg.SpaceKey)
	q.Set("title", title)
	q.Set("expand", "version")

	var resp searchResponse
	if err := c.do(ctx, http.MethodGet, "/rest/api/content?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	p := resp.Results[0]
	return &p, nil
}

func (c *ConfluenceClient) pageURL(p page) string {
	base := p.Links.Base
	if base == "" {
		base = c.baseURL
	}
	if p.Links.WebUI == "" {
		return base + "/pages/viewpage.action?pageId=" + url.QueryEscape(p.ID)
	}
	return strings.TrimSuffix(base, "/") + p.Links.WebUI
}

func (c *ConfluenceClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode confluence request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create confluence request: %w", err)
	}
	req.SetBasicAuth(c.cfg.Email, c.cfg.APIToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("confluence request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read confluence response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("confluence API returned %d: %s", resp.StatusCode, errorDetail(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode confluence response: %w", err)
	}
	return nil
}

// errorDetail prefers the "message" field of a Confluence error body.
func errorDetail(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	if text == "" {
		return "empty response"
	}
	return text
}
