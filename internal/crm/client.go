// Package crm is the client for the external CRM's contact label API.
// The engine never mutates labels directly for synchronization-of-record
// purposes; the sync apply step calls AddLabel/RemoveLabel after the
// protection gate has approved each instruction.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ignite/crm-tag-sync/internal/pkg/httpretry"
)

// Client is the CRM API client.
type Client struct {
	baseURL     string
	username    string
	password    string
	accountCode string
	listID      string
	httpClient  httpretry.HTTPDoer
}

// NewClient creates a new CRM API client.
func NewClient(config Config) *Client {
	timeout := time.Duration(config.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:     config.BaseURL,
		username:    config.Username,
		password:    config.Password,
		accountCode: config.AccountCode,
		listID:      config.ListID,
		httpClient:  httpretry.NewRetryClient(&http.Client{Timeout: timeout}, 3),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing).
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// doRequest performs an authenticated request to the CRM API.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X_USERNAME", c.username)
	req.Header.Set("X_PASSWORD", c.password)
	req.Header.Set("X_ACCOUNT_CODE", c.accountCode)
	if c.listID != "" {
		req.Header.Set("X_LIST_ID", c.listID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// GetContactLabels retrieves the full current label set for a contact.
func (c *Client) GetContactLabels(ctx context.Context, email string) ([]string, error) {
	endpoint := fmt.Sprintf("/api/contacts/%s/labels", url.PathEscape(email))

	respBody, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var response LabelsResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if response.Metadata.Error {
		return nil, fmt.Errorf("API returned error for contact labels")
	}
	return response.Payload, nil
}

// AddLabel attaches a label to a contact. Adding an existing label is a
// no-op on the CRM side.
func (c *Client) AddLabel(ctx context.Context, email, label string) error {
	endpoint := fmt.Sprintf("/api/contacts/%s/labels", url.PathEscape(email))

	respBody, err := c.doRequest(ctx, http.MethodPost, endpoint, mutateLabelRequest{Label: label})
	if err != nil {
		return err
	}

	var response statusResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if response.Metadata.Error {
		return fmt.Errorf("API returned error adding label %q", label)
	}
	return nil
}

// RemoveLabel detaches a label from a contact.
func (c *Client) RemoveLabel(ctx context.Context, email, label string) error {
	endpoint := fmt.Sprintf("/api/contacts/%s/labels", url.PathEscape(email))

	respBody, err := c.doRequest(ctx, http.MethodDelete, endpoint, mutateLabelRequest{Label: label})
	if err != nil {
		return err
	}

	var response statusResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if response.Metadata.Error {
		return fmt.Errorf("API returned error removing label %q", label)
	}
	return nil
}

// ListAllContacts retrieves every contact on the configured list. Used
// only by the broader-scope weekly snapshot mode; can be slow on large
// accounts.
func (c *Client) ListAllContacts(ctx context.Context) ([]Contact, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/api/contacts", nil)
	if err != nil {
		return nil, err
	}

	var response ContactsResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if response.Metadata.Error {
		return nil, fmt.Errorf("API returned error listing contacts")
	}
	return response.Payload, nil
}

// ListAllContactEmails returns just the email addresses of every contact.
func (c *Client) ListAllContactEmails(ctx context.Context) ([]string, error) {
	contacts, err := c.ListAllContacts(ctx)
	if err != nil {
		return nil, err
	}
	emails := make([]string, 0, len(contacts))
	for _, contact := range contacts {
		emails = append(emails, contact.Email)
	}
	return emails, nil
}
