package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const schemaRegistryContentType = "application/vnd.schemaregistry.v1+json"

// RegistryError is a non-2xx answer from the schema registry.
type RegistryError struct {
	Status int
	Body   string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("schema registry returned %d: %s", e.Status, e.Body)
}

// SchemaRegistryClient registers the JSON schemas of entry events with a
// Confluent compatible registry.
type SchemaRegistryClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewSchemaRegistryClient constructs a client with a 10s request timeout.
func NewSchemaRegistryClient(baseURL string) *SchemaRegistryClient {
	return &SchemaRegistryClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// EnsureSchema returns the id of the latest version of subject, registering
// schema when the subject does not exist yet.
func (c *SchemaRegistryClient) EnsureSchema(ctx context.Context, subject string, schema string) (int, error) {
	id, err := c.call(ctx, http.MethodGet, subject, "/versions/latest", nil)
	var regErr *RegistryError
	switch {
	case err == nil:
		return id, nil
	case errors.As(err, &regErr) && regErr.Status == http.StatusNotFound:
	default:
		return 0, fmt.Errorf("lookup subject %s: %w", subject, err)
	}

	body, err := json.Marshal(struct {
		SchemaType string `json:"schemaType"`
		Schema     string `json:"schema"`
	}{SchemaType: "JSON", Schema: schema})
	if err != nil {
		return 0, err
	}
	id, err = c.call(ctx, http.MethodPost, subject, "/versions", body)
	if err != nil {
		return 0, fmt.Errorf("register subject %s: %w", subject, err)
	}
	return id, nil
}

// call performs one request against /subjects/<subject><suffix> and decodes
// the schema id from the response.
func (c *SchemaRegistryClient) call(ctx context.Context, method, subject, suffix string, body []byte) (int, error) {
	endpoint := c.baseURL + "/subjects/" + url.PathEscape(subject) + suffix

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", schemaRegistryContentType)
	if body != nil {
		req.Header.Set("Content-Type", schemaRegistryContentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return 0, &RegistryError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var payload struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode schema registry response: %w", err)
	}
	return payload.ID, nil
}
