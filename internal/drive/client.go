// Package drive is the transport adapter for snapshot backup files. It
// speaks the remote object store's REST surface directly and never retries:
// retry policy belongs to the caller.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"time"
)

const (
	DefaultBaseURL   = "https://www.googleapis.com/drive/v3"
	DefaultUploadURL = "https://www.googleapis.com/upload/drive/v3"

	maxDownloadSize = 512 << 20
)

var ErrUnauthorized = errors.New("drive: unauthorized")

type File struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ModifiedTime string `json:"modifiedTime"`
	Size         string `json:"size"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	uploadURL  string
}

func NewClient(baseURL, uploadURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if uploadURL == "" {
		uploadURL = DefaultUploadURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		uploadURL:  uploadURL,
	}
}

// Upload pushes a snapshot as a multipart/related request (JSON metadata
// part, then the raw bytes) and returns the remote file id.
func (c *Client) Upload(ctx context.Context, name string, data []byte, token string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := writer.CreatePart(metaHeader)
	if err != nil {
		return "", fmt.Errorf("drive upload: metadata part: %w", err)
	}
	metadata := map[string]any{
		"name":     name,
		"mimeType": "application/octet-stream",
		"parents":  []string{"root"},
	}
	if err := json.NewEncoder(metaPart).Encode(metadata); err != nil {
		return "", fmt.Errorf("drive upload: encode metadata: %w", err)
	}

	fileHeader := textproto.MIMEHeader{}
	fileHeader.Set("Content-Type", "application/octet-stream")
	filePart, err := writer.CreatePart(fileHeader)
	if err != nil {
		return "", fmt.Errorf("drive upload: file part: %w", err)
	}
	if _, err := filePart.Write(data); err != nil {
		return "", fmt.Errorf("drive upload: write file part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("drive upload: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL+"/files?uploadType=multipart", &body)
	if err != nil {
		return "", fmt.Errorf("drive upload: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "multipart/related; boundary="+writer.Boundary())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("drive upload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkResponse(resp, "upload"); err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("drive upload: decode response: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("drive upload: response missing file id")
	}
	return created.ID, nil
}

// List returns remote backups whose names contain the given prefix,
// excluding trashed files.
func (c *Client) List(ctx context.Context, token, namePrefix string) ([]File, error) {
	query := url.Values{}
	query.Set("q", fmt.Sprintf("name contains '%s' and trashed = false", namePrefix))
	query.Set("fields", "files(id,name,modifiedTime,size)")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("drive list: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("drive list: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkResponse(resp, "list"); err != nil {
		return nil, err
	}

	var listing struct {
		Files []File `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("drive list: decode response: %w", err)
	}
	return listing.Files, nil
}

func (c *Client) Download(ctx context.Context, fileID, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files/"+url.PathEscape(fileID)+"?alt=media", nil)
	if err != nil {
		return nil, fmt.Errorf("drive download: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("drive download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkResponse(resp, "download"); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("drive download: read body: %w", err)
	}
	if len(data) > maxDownloadSize {
		return nil, fmt.Errorf("drive download: file exceeds %d MiB limit", maxDownloadSize>>20)
	}
	return data, nil
}

func checkResponse(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("drive %s: %w: %s", op, ErrUnauthorized, bytes.TrimSpace(body))
	}
	return fmt.Errorf("drive %s: unexpected status %d: %s", op, resp.StatusCode, bytes.TrimSpace(body))
}
