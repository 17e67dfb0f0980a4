// Package storage 提供文件存储协作方接口
package storage

import (
	"context"
	"time"
)

// UploadResult 对象上传结果
type UploadResult struct {
	PublicURL string `json:"public_url"`
	Path      string `json:"path"`
}

// ObjectStorage 对象存储协作方。
// 核心流程只依赖返回的 URL 引用，不感知具体后端。
type ObjectStorage interface {
	Upload(ctx context.Context, data []byte, name, folder, mimeType string) (*UploadResult, error)
	Delete(ctx context.Context, path string) error
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// PinResult 内容固定结果
type PinResult struct {
	CID string `json:"cid"`
	URL string `json:"url"`
}

// Pinner 内容寻址固定服务。协议文档与变更附件入库前固定，
// 本核心不做解除固定。
type Pinner interface {
	Pin(ctx context.Context, data []byte, name string, metadata map[string]string) (*PinResult, error)
}
