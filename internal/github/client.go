// Package github is a minimal client for GitHub's secret scanning API,
// covering the two calls a validation run needs: fetching one alert and
// listing its locations.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultBaseURL   = "https://api.github.com"
	defaultUserAgent = "secretvet"

	// Location pages are fetched at the API maximum; MaxPages bounds
	// runaway pagination on pathological alerts.
	perPage  = 100
	maxPages = 50
)

// Config holds GitHub API connection settings.
type Config struct {
	BaseURL   string // override for tests and GHES, e.g. https://github.example.com/api/v3
	Token     string // bearer token; empty means unauthenticated
	UserAgent string
}

// Client is a GitHub secret scanning API client.
type Client struct {
	HTTPClient *http.Client
	Config     Config
}

// NewClient returns a client with the given config. HTTPClient defaults
// to http.DefaultClient.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Client{Config: cfg, HTTPClient: http.DefaultClient}
}

// Alert is a secret scanning alert, reduced to the fields the validator
// cares about.
type Alert struct {
	Number                 int    `json:"number"`
	State                  string `json:"state"`
	SecretType             string `json:"secret_type"`
	SecretTypeDisplayName  string `json:"secret_type_display_name"`
	Secret                 string `json:"secret,omitempty"`
	Validity               string `json:"validity,omitempty"`
	Resolution             string `json:"resolution,omitempty"`
	CreatedAt              string `json:"created_at,omitempty"`
	ResolvedAt             string `json:"resolved_at,omitempty"`
	HTMLURL                string `json:"html_url,omitempty"`
	PushProtectionBypassed bool   `json:"push_protection_bypassed,omitempty"`
}

// Location is one place a secret was detected.
type Location struct {
	Type    string          `json:"type"`
	Details locationDetails `json:"details"`
}

type locationDetails struct {
	Path        string `json:"path,omitempty"`
	StartLine   int    `json:"start_line,omitempty"`
	EndLine     int    `json:"end_line,omitempty"`
	BlobSHA     string `json:"blob_sha,omitempty"`
	CommitSHA   string `json:"commit_sha,omitempty"`
	CommitURL   string `json:"commit_url,omitempty"`
	IssueURL    string `json:"issue_title_url,omitempty"`
	PullRequest string `json:"pull_request_url,omitempty"`
}

// GetAlert fetches a single secret scanning alert.
func (c *Client) GetAlert(ctx context.Context, owner, repo string, alertNumber int) (*Alert, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/secret-scanning/alerts/%d",
		c.Config.BaseURL, owner, repo, alertNumber)
	var alert Alert
	if err := c.getJSON(ctx, u, &alert); err != nil {
		return nil, fmt.Errorf("get alert %d: %w", alertNumber, err)
	}
	return &alert, nil
}

// ListAlertLocations lists every location for an alert, following
// pagination up to the page cap.
func (c *Client) ListAlertLocations(ctx context.Context, owner, repo string, alertNumber int) ([]Location, error) {
	var all []Location
	for page := 1; page <= maxPages; page++ {
		u := fmt.Sprintf("%s/repos/%s/%s/secret-scanning/alerts/%d/locations?per_page=%d&page=%d",
			c.Config.BaseURL, owner, repo, alertNumber, perPage, page)
		var locs []Location
		if err := c.getJSON(ctx, u, &locs); err != nil {
			return nil, fmt.Errorf("list locations page %d: %w", page, err)
		}
		all = append(all, locs...)
		if len(locs) < perPage {
			break
		}
	}
	return all, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", c.Config.UserAgent)
	if c.Config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Config.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GitHub API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
