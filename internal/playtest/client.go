package playtest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/okian/affinity/internal/domain/model"
)

// GameInfo is the part of a catalog entry the driver needs.
type GameInfo struct {
	ID     string       `json:"id"`
	Domain model.Domain `json:"domain"`
}

// AckResponse is the answer to a completion.
type AckResponse struct {
	EventID   string `json:"eventId"`
	Duplicate bool   `json:"duplicate"`
}

// AffinityResponse is the subset of a recompute answer that is verified.
// Null dominant domain and confidence decode to "".
type AffinityResponse struct {
	SessionID          string             `json:"sessionId"`
	DomainScores       model.DomainScores `json:"domainScores"`
	DominantDomain     string             `json:"dominantDomain"`
	ConfidenceLabel    string             `json:"confidenceLabel"`
	ConfidenceFraction float64            `json:"confidenceFraction"`
	TotalGamesPlayed   int                `json:"totalGamesPlayed"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusError is a non-2xx answer.
type StatusError struct {
	Status int
	Code   string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("status %d: %s", e.Status, e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

// Client talks to the affinity HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Health checks GET /api/health.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil)
}

// Games lists the catalog.
func (c *Client) Games(ctx context.Context) ([]GameInfo, error) {
	var out []GameInfo
	if err := c.do(ctx, http.MethodGet, "/api/games", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSession starts a session and returns its id.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/sessions", nil, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Complete sends one completion.
func (c *Client) Complete(ctx context.Context, sessionID string, in Completion) (AckResponse, error) {
	body := struct {
		SessionID string `json:"session_id"`
		Completion
	}{SessionID: sessionID, Completion: in}

	var out AckResponse
	err := c.do(ctx, http.MethodPost, "/api/games/"+in.GameID+"/complete", body, &out)
	return out, err
}

// Recompute triggers and returns a fresh affinity computation.
func (c *Client) Recompute(ctx context.Context, sessionID string) (AffinityResponse, error) {
	var out AffinityResponse
	err := c.do(ctx, http.MethodPost, "/api/affinity/"+sessionID+"/recompute", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var ae apiError
		_ = json.Unmarshal(data, &ae)
		return &StatusError{Status: resp.StatusCode, Code: ae.Code, Body: string(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
