package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"presence-chat/internal/models"
)

// Client wires a Store to a running chat service: it loads threads over
// the REST API and feeds pushed socket events into the store.
type Client struct {
	baseURL string
	wsURL   string
	token   string
	selfID  int
	http    *http.Client
	Store   *Store
}

// NewClient builds a Client for the service at baseURL (http[s]://...)
// and its websocket endpoint at wsURL (ws[s]://...).
func NewClient(baseURL, wsURL, token string, selfID int, notifier Notifier) *Client {
	c := &Client{
		baseURL: baseURL,
		wsURL:   wsURL,
		token:   token,
		selfID:  selfID,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	c.Store = New(selfID, c, notifier)
	return c
}

// DirectMessages loads the one-to-one thread with peerID.
func (c *Client) DirectMessages(ctx context.Context, peerID int) ([]models.Message, error) {
	return c.loadMessages(ctx, fmt.Sprintf("%s/messages/user/%d", c.baseURL, peerID))
}

// GroupMessages loads the thread of the given group.
func (c *Client) GroupMessages(ctx context.Context, groupID int) ([]models.Message, error) {
	return c.loadMessages(ctx, fmt.Sprintf("%s/groups/%d/messages", c.baseURL, groupID))
}

func (c *Client) loadMessages(ctx context.Context, endpoint string) ([]models.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("load messages: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Messages []models.Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Listen dials the socket endpoint and merges pushed events into the
// store until the context is cancelled or the connection drops. The
// caller is expected to re-open its conversation after a reconnect;
// events missed while disconnected are gone for good.
func (c *Client) Listen(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/ws?%s", c.wsURL, url.Values{
		"userId": {strconv.Itoa(c.selfID)},
		"token":  {c.token},
	}.Encode())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial socket: %w", err)
	}
	defer conn.Close()

	c.Store.Connect()
	defer c.Store.Disconnect()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var ev models.SocketEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		c.Store.Apply(ev)
	}
}
