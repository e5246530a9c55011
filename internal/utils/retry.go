package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// Doer 接口，支持 http.Client 和 RetryableHTTPClient
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// RetryConfig 配置重试参数
type RetryConfig struct {
	// MaxRetries 最大重试次数（不含首次请求）
	MaxRetries int
	// InitialDelay 初始延迟时间
	InitialDelay time.Duration
	// MaxDelay 最大延迟时间
	MaxDelay time.Duration
	// BackoffMultiplier 退避倍数
	BackoffMultiplier float64
	// RetryableStatusCodes 需要重试的HTTP状态码
	RetryableStatusCodes []int
	// RetryableErrors 需要重试的错误类型判断函数
	RetryableErrors func(error) bool
	// OnRetry 每次重试前回调，用于记录日志
	OnRetry func(attempt int, reason string, delay time.Duration)
}

// DefaultRetryConfig 返回默认的重试配置
// 500 不在重试列表中：生成服务对一次失败的生成返回 500，重放会重复计费
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        2,
		InitialDelay:      1 * time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
		RetryableStatusCodes: []int{
			http.StatusRequestTimeout,     // 408
			http.StatusTooManyRequests,    // 429
			http.StatusBadGateway,         // 502
			http.StatusServiceUnavailable, // 503
			http.StatusGatewayTimeout,     // 504
		},
		RetryableErrors: IsTransientError,
	}
}

// IsTransientError 网络错误可以重试，上下文取消不重试
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// RetryableHTTPClient 带重试机制的HTTP客户端
type RetryableHTTPClient struct {
	client Doer
	config *RetryConfig
}

// NewRetryableHTTPClient 创建新的带重试机制的HTTP客户端
func NewRetryableHTTPClient(client Doer, config *RetryConfig) *RetryableHTTPClient {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &RetryableHTTPClient{
		client: client,
		config: config,
	}
}

// Do 执行HTTP请求，支持重试
// 最后一次尝试仍是可重试状态码时返回该响应本身，调用方可以读取错误详情
func (r *RetryableHTTPClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("读取请求体失败: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if attempt > 0 {
			delay := r.calculateDelay(attempt)
			if r.config.OnRetry != nil {
				r.config.OnRetry(attempt, describe(lastErr), delay)
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		// 请求体只能读取一次，每次尝试都重新构造
		attemptReq := req.Clone(ctx)
		if body != nil {
			attemptReq.Body = io.NopCloser(bytes.NewReader(body))
			attemptReq.ContentLength = int64(len(body))
		}

		resp, err := r.client.Do(attemptReq)
		if err != nil {
			lastErr = err
			if !r.shouldRetryError(err) {
				break
			}
			continue
		}

		if !r.shouldRetryStatus(resp.StatusCode) || attempt == r.config.MaxRetries {
			return resp, nil
		}

		resp.Body.Close()
		lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return nil, fmt.Errorf("after %d retries: %w", r.config.MaxRetries, lastErr)
}

// calculateDelay 指数退避：delay = initialDelay * (backoffMultiplier ^ (attempt - 1))
func (r *RetryableHTTPClient) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffMultiplier, float64(attempt-1))
	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}
	return time.Duration(delay)
}

func (r *RetryableHTTPClient) shouldRetryStatus(statusCode int) bool {
	for _, code := range r.config.RetryableStatusCodes {
		if statusCode == code {
			return true
		}
	}
	return false
}

func (r *RetryableHTTPClient) shouldRetryError(err error) bool {
	if r.config.RetryableErrors == nil {
		return false
	}
	return r.config.RetryableErrors(err)
}

func describe(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
