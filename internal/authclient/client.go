package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrInvalidToken = errors.New("invalid token")

// Client talks to the external auth service. Session issuance and
// credential checks live entirely in that service; this client only
// resolves a bearer token to a user id.
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a Client for the auth service at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// ValidateToken verifies the token and returns the authenticated user id.
func (c *Client) ValidateToken(ctx context.Context, token string) (int, error) {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/tokens/validate", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("auth service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, ErrInvalidToken
	}

	var out struct {
		Valid  bool `json:"valid"`
		UserID int  `json:"user_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	if !out.Valid || out.UserID == 0 {
		return 0, ErrInvalidToken
	}
	return out.UserID, nil
}
