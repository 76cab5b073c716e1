package metadata

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/groqtales/groqtales-server/internal/config"
	"github.com/groqtales/groqtales-server/internal/core/domain"
	"github.com/groqtales/groqtales-server/internal/core/ports"
)

// NewUploader returns a PinningUploader when an upload URL is configured and
// an InlineUploader otherwise.
func NewUploader(cfg config.MetadataConfig, logger *slog.Logger) ports.MetadataUploader {
	if strings.TrimSpace(cfg.UploadURL) == "" {
		return InlineUploader{}
	}
	return NewPinningUploader(PinningConfig{
		URL:           cfg.UploadURL,
		APIKey:        cfg.APIKey,
		GatewayPrefix: cfg.GatewayPrefix,
		Timeout:       cfg.Timeout,
		Logger:        logger,
	})
}

// InlineUploader embeds the document in a base64 data: URI. Nothing leaves
// the process, so Upload never fails for a marshalable document.
type InlineUploader struct{}

func (InlineUploader) Upload(_ context.Context, doc *ports.MetadataDocument) (string, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return "", domain.ErrServer("marshal metadata", err)
	}
	return "data:application/json;base64," + base64.StdEncoding.EncodeToString(body), nil
}

// PinningUploader posts documents to a JSON pinning endpoint (Pinata's
// pinJSONToIPFS shape) and returns gatewayPrefix + content hash.
type PinningUploader struct {
	url           string
	apiKey        string
	gatewayPrefix string
	headers       map[string]string
	client        *http.Client
	logger        *slog.Logger
}

// PinningConfig configures a PinningUploader.
type PinningConfig struct {
	URL           string
	APIKey        string
	GatewayPrefix string
	Timeout       time.Duration
	Headers       map[string]string
	Client        *http.Client
	Logger        *slog.Logger
}

// NewPinningUploader creates a pinning uploader.
func NewPinningUploader(cfg PinningConfig) *PinningUploader {
	prefix := cfg.GatewayPrefix
	if prefix == "" {
		prefix = "ipfs://"
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PinningUploader{
		url:           cfg.URL,
		apiKey:        cfg.APIKey,
		gatewayPrefix: prefix,
		headers:       cfg.Headers,
		client:        client,
		logger:        logger,
	}
}

type pinRequest struct {
	Content  *ports.MetadataDocument `json:"pinataContent"`
	Metadata pinMetadata             `json:"pinataMetadata"`
}

type pinMetadata struct {
	Name string `json:"name"`
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// Upload pins doc. Failures are upstream_unavailable and are not retried.
func (u *PinningUploader) Upload(ctx context.Context, doc *ports.MetadataDocument) (string, error) {
	hash, err := u.doRequest(ctx, doc)
	if err != nil {
		u.logger.ErrorContext(ctx, "metadata upload failed",
			slog.String("url", u.url),
			slog.String("error", err.Error()),
		)
		return "", domain.ErrUpstreamUnavailable("metadata upload failed", err)
	}
	return u.gatewayPrefix + hash, nil
}

func (u *PinningUploader) doRequest(ctx context.Context, doc *ports.MetadataDocument) (string, error) {
	body, err := json.Marshal(pinRequest{
		Content:  doc,
		Metadata: pinMetadata{Name: doc.Name},
	})
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if u.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+u.apiKey)
	}
	for k, v := range u.headers {
		req.Header.Set(k, v)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("pinning service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var out pinResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("unmarshal pin response: %w", err)
	}
	if out.IpfsHash == "" {
		return "", fmt.Errorf("pin response carried no IpfsHash")
	}
	return out.IpfsHash, nil
}
