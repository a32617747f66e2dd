// Package osonsms implements messaging.Sender against the OsonSMS HTTP API.
package osonsms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"daftar/internal/messaging"
	"daftar/internal/platform/config"
)

type Client struct {
	sendURL   string
	statusURL string
	login     string
	token     string
	sender    string
	http      *http.Client
}

func New(cfg config.SMS) *Client {
	return &Client{
		sendURL:   cfg.SendURL,
		statusURL: cfg.StatusURL,
		login:     cfg.Login,
		token:     cfg.Token,
		sender:    cfg.Sender,
		http:      &http.Client{Timeout: cfg.Timeout},
	}
}

type sendResponse struct {
	Status    string `json:"status"`
	MsgID     string `json:"msg_id"`
	ErrorCode int    `json:"error_code"`
	Message   string `json:"message"`
}

func (c *Client) Send(ctx context.Context, phone, text string) (string, error) {
	q := url.Values{}
	q.Set("from", c.sender)
	q.Set("phone_number", phone)
	q.Set("msg", text)
	q.Set("login", c.login)
	q.Set("txn_id", uuid.NewString())

	var resp sendResponse
	if err := c.get(ctx, c.sendURL, q, &resp); err != nil {
		return "", err
	}
	if resp.Status != "ok" && resp.ErrorCode != 0 {
		return "", fmt.Errorf("sms gateway rejected send: code=%d message=%q", resp.ErrorCode, resp.Message)
	}
	return resp.MsgID, nil
}

type statusResponse struct {
	Status string `json:"status"`
}

func (c *Client) QueryStatus(ctx context.Context, messageID string) (messaging.Status, error) {
	q := url.Values{}
	q.Set("login", c.login)
	q.Set("msg_id", messageID)
	q.Set("txn_id", uuid.NewString())

	var resp statusResponse
	if err := c.get(ctx, c.statusURL, q, &resp); err != nil {
		// Status checks are advisory; a transport failure reads as UNKNOWN.
		return messaging.StatusUnknown, nil
	}
	switch resp.Status {
	case "DELIVERED":
		return messaging.StatusDelivered, nil
	case "ACCEPTED", "ENROUTE", "PENDING":
		return messaging.StatusPending, nil
	case "FAILED", "UNDELIVERABLE", "EXPIRED", "REJECTED":
		return messaging.StatusFailed, nil
	default:
		return messaging.StatusUnknown, nil
	}
}

func (c *Client) get(ctx context.Context, base string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call sms gateway: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("sms gateway returned %d", res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode sms response: %w", err)
	}
	return nil
}
