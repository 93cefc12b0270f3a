// Package extract pulls raw text out of stored files using an
// Unstructured-compatible partitioning API.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// defaultTimeout bounds a single partition request. Large PDFs can take
// minutes to process.
const defaultTimeout = 5 * time.Minute

// ObjectDownloader fetches stored file content by key.
type ObjectDownloader interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

// Client downloads files from object storage and extracts their text.
// Plain text files are returned as-is; everything else goes through the
// partitioning API.
type Client struct {
	storage    ObjectDownloader
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates an extraction Client.
func NewClient(storage ObjectDownloader, apiURL, apiKey string) *Client {
	return &Client{
		storage: storage,
		apiURL:  apiURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

type element struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ExtractText downloads the object and returns its text content.
func (c *Client) ExtractText(ctx context.Context, fileKey, mimeType string) (string, error) {
	body, err := c.storage.Download(ctx, fileKey)
	if err != nil {
		return "", fmt.Errorf("failed to download file %s: %w", fileKey, err)
	}
	defer body.Close()

	if mimeType == "text/plain" {
		data, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("failed to read file %s: %w", fileKey, err)
		}
		return string(data), nil
	}

	if c.apiURL == "" {
		return "", fmt.Errorf("extraction API not configured")
	}

	filename := fileKey
	if i := strings.LastIndex(fileKey, "/"); i >= 0 {
		filename = fileKey[i+1:]
	}
	if filename == "" {
		filename = "document"
	}

	return c.partition(ctx, filename, mimeType, body)
}

func (c *Client) partition(ctx context.Context, filename, mimeType string, content io.Reader) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("files", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build multipart request: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("failed to build multipart request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to build multipart request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("unstructured-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("extraction request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errText, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("extraction API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(errText)))
	}

	var elements []element
	if err := json.NewDecoder(resp.Body).Decode(&elements); err != nil {
		return "", fmt.Errorf("invalid extraction API response: %w", err)
	}

	var parts []string
	for _, el := range elements {
		if t := strings.TrimSpace(el.Text); t != "" {
			parts = append(parts, t)
		}
	}
	text := strings.Join(parts, "\n\n")
	if text == "" {
		return "", fmt.Errorf("no text could be extracted from the document")
	}
	return text, nil
}
