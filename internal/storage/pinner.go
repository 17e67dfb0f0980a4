package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// HTTPPinner 通过 HTTP 网关固定内容
type HTTPPinner struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewHTTPPinner 创建固定服务客户端
func NewHTTPPinner(endpoint, token string, timeout time.Duration) *HTTPPinner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPPinner{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: timeout},
	}
}

// pinResponse 网关响应体
type pinResponse struct {
	Hash string `json:"IpfsHash"`
}

// Pin 以 multipart 上传并固定内容
func (p *HTTPPinner) Pin(ctx context.Context, data []byte, name string, metadata map[string]string) (*PinResult, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		meta, err := json.Marshal(map[string]interface{}{
			"name":      name,
			"keyvalues": metadata,
		})
		if err != nil {
			return nil, err
		}
		if err := w.WriteField("pinataMetadata", string(meta)); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("pin failed with status %d: %s", resp.StatusCode, raw)
	}

	var pr pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, err
	}

	return &PinResult{
		CID: pr.Hash,
		URL: "https://gateway.pinata.cloud/ipfs/" + pr.Hash,
	}, nil
}
