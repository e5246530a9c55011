package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ImanolGo/Visual-Whispers/internal/logger"
	"github.com/ImanolGo/Visual-Whispers/internal/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	generatePath = "/api/generate"
	continuePath = "/api/continue"
	downloadPath = "/api/download"

	defaultGenerateDetail = "Failed to generate image"
	defaultContinueDetail = "Failed to continue chain"
	defaultDownloadDetail = "Failed to download chain"

	// 错误体最多读取的字节数
	maxErrorBody = 64 << 10
)

// 全局共享的HTTP客户端，实现连接池化
var (
	sharedTransport *http.Transport
	transportOnce   sync.Once
)

func getSharedTransport() *http.Transport {
	transportOnce.Do(func() {
		sharedTransport = &http.Transport{
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 0, // 生成一张图可能需要一分钟以上，交给整体超时
		}
	})
	return sharedTransport
}

// Options 客户端选项
type Options struct {
	BaseURL string
	// Timeout 单次请求的整体超时
	Timeout time.Duration
	// MinInterval 两次请求之间的最小间隔，0 表示不限速
	MinInterval time.Duration
	// Retry 只用于导出；生成和继续每次只发一次请求
	Retry       *utils.RetryConfig
	Logger      *zap.Logger
	// HTTPClient 测试时替换底层传输
	HTTPClient utils.Doer
	// Now 用于生成默认文件名
	Now func() time.Time
}

// Client 生成服务的 HTTP 客户端
type Client struct {
	baseURL string
	// single 生成请求使用，不重放
	single  utils.Doer
	doer    utils.Doer
	limiter *rate.Limiter
	logger  *zap.Logger
	now     func() time.Time
}

// NewClient 创建生成服务客户端
func NewClient(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	var base utils.Doer = opts.HTTPClient
	if base == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		base = &http.Client{Timeout: timeout, Transport: getSharedTransport()}
	}

	retryCfg := utils.DefaultRetryConfig()
	if opts.Retry != nil {
		copied := *opts.Retry
		retryCfg = &copied
	}
	if retryCfg.OnRetry == nil {
		retryCfg.OnRetry = func(attempt int, reason string, delay time.Duration) {
			log.Warn("重试请求",
				zap.Int("attempt", attempt),
				zap.String("reason", reason),
				zap.Duration("delay", delay))
		}
	}

	var limiter *rate.Limiter
	if opts.MinInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.MinInterval), 1)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		single:  base,
		doer:    utils.NewRetryableHTTPClient(base, retryCfg),
		limiter: limiter,
		logger:  log,
		now:     now,
	}
}

// BaseURL 返回服务地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Generate 开始一条新的链
func (c *Client) Generate(ctx context.Context, req GenerationRequest) (*GenerateResponse, error) {
	var out GenerateResponse
	if err := c.postJSON(ctx, generatePath, req, defaultGenerateDetail, &out); err != nil {
		return nil, err
	}
	if len(out.ImageURLs) == 0 || out.ImageURLs[0] == "" {
		return nil, fmt.Errorf("响应格式错误: image_urls 为空")
	}
	return &out, nil
}

// Continue 基于上一步的结果继续链
func (c *Client) Continue(ctx context.Context, req GenerationRequest) (*ContinueResponse, error) {
	var out ContinueResponse
	if err := c.postJSON(ctx, continuePath, req, defaultContinueDetail, &out); err != nil {
		return nil, err
	}
	if out.ImageURL == "" {
		return nil, fmt.Errorf("响应格式错误: image_url 为空")
	}
	return &out, nil
}

// Download 把整条链提交给服务端，返回导出文件
func (c *Client) Download(ctx context.Context, records []ExportRecord) (*Artifact, error) {
	if len(records) == 0 {
		return nil, errors.New("没有可导出的记录")
	}

	resp, err := c.do(ctx, c.doer, downloadPath, records)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, readAPIError(resp, defaultDownloadDetail)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/html"
	}

	return &Artifact{
		Filename:    c.filenameFrom(resp.Header.Get("Content-Disposition")),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, defaultDetail string, out any) error {
	resp, err := c.do(ctx, c.single, path, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(resp, defaultDetail)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, doer utils.Doer, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("等待限流失败: %w", err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := doer.Do(httpReq)
	if err != nil {
		c.logger.Warn("请求失败",
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, fmt.Errorf("请求失败: %w", err)
	}

	c.logger.Debug("请求完成",
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	return resp, nil
}

// readAPIError 读取 {"detail": "..."}，读不到时使用默认信息
func readAPIError(resp *http.Response, defaultDetail string) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Detail: defaultDetail}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return apiErr
	}

	var body errorBody
	if json.Unmarshal(data, &body) == nil && strings.TrimSpace(body.Detail) != "" {
		apiErr.Detail = body.Detail
	}
	return apiErr
}

func (c *Client) filenameFrom(disposition string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := strings.TrimSpace(params["filename"]); name != "" {
				return name
			}
		}
	}
	return fmt.Sprintf("visual_whispers_%s.html", c.now().Format("20060102_150405"))
}
