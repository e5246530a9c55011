package api

import (
	"fmt"
)

// GenerationRequest 生成服务的请求体，generate 和 continue 共用
type GenerationRequest struct {
	Prompt      string  `json:"prompt"`
	Perspective string  `json:"perspective"`
	Temperature float64 `json:"temperature"`
}

// GenerateResponse /api/generate 的响应
type GenerateResponse struct {
	ImageURLs      []string `json:"image_urls"`
	Description    string   `json:"description"`
	ModifiedPrompt string   `json:"modified_prompt"`
}

// ContinueResponse /api/continue 的响应
type ContinueResponse struct {
	ImageURL       string `json:"image_url"`
	Description    string `json:"description"`
	ModifiedPrompt string `json:"modified_prompt"`
}

// ExportRecord 下载时提交的单条历史
type ExportRecord struct {
	ImageURL    string `json:"imageUrl"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
	Iteration   int    `json:"iteration"`
}

// Artifact 下载得到的文件
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// errorBody 服务端错误响应，形如 {"detail": "..."}
type errorBody struct {
	Detail string `json:"detail"`
}

// APIError 表示 API 请求错误，包含状态码和可直接展示给用户的错误信息
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API请求失败 (状态码: %d): %s", e.StatusCode, e.Detail)
}
