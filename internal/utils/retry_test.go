package utils

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func fastRetryConfig(maxRetries int, codes ...int) *RetryConfig {
	return &RetryConfig{
		MaxRetries:           maxRetries,
		InitialDelay:         10 * time.Millisecond, // 使用短延迟加速测试
		MaxDelay:             100 * time.Millisecond,
		BackoffMultiplier:    2.0,
		RetryableStatusCodes: codes,
		RetryableErrors:      IsTransientError,
	}
}

func TestRetryableHTTPClient_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success"))
	}))
	defer server.Close()

	retryClient := NewRetryableHTTPClient(&http.Client{Timeout: 5 * time.Second}, DefaultRetryConfig())

	req, err := http.NewRequest("GET", server.URL, nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := retryClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestRetryableHTTPClient_RetryOn503ReplaysBody(t *testing.T) {
	var requestCount int32

	// 前2次返回503，第3次返回200；每次都必须收到完整请求体
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requestCount, 1)
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"prompt":"a castle"}` {
			t.Errorf("attempt %d: unexpected body %q", n, body)
		}
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var retries []int
	config := fastRetryConfig(3, http.StatusServiceUnavailable)
	config.OnRetry = func(attempt int, reason string, delay time.Duration) {
		retries = append(retries, attempt)
	}
	retryClient := NewRetryableHTTPClient(&http.Client{Timeout: 5 * time.Second}, config)

	req, err := http.NewRequest("POST", server.URL, strings.NewReader(`{"prompt":"a castle"}`))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	start := time.Now()
	resp, err := retryClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&requestCount); got != 3 {
		t.Errorf("Expected 3 requests, got %d", got)
	}
	if len(retries) != 2 || retries[0] != 1 || retries[1] != 2 {
		t.Errorf("Expected OnRetry for attempts [1 2], got %v", retries)
	}
	// 至少应该有10ms + 20ms的延迟
	if elapsed < 25*time.Millisecond {
		t.Errorf("Expected at least 25ms delay due to retries, got %v", elapsed)
	}
}

func TestRetryableHTTPClient_ReturnsLastResponseAfterMaxRetries(t *testing.T) {
	var requestCount int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"detail":"busy"}`))
	}))
	defer server.Close()

	retryClient := NewRetryableHTTPClient(&http.Client{Timeout: 5 * time.Second}, fastRetryConfig(2, http.StatusServiceUnavailable))

	req, _ := http.NewRequest("GET", server.URL, nil)
	resp, err := retryClient.Do(req)
	if err != nil {
		t.Fatalf("Expected final response, got error: %v", err)
	}
	defer resp.Body.Close()

	// 1次初始请求 + 2次重试
	if got := atomic.LoadInt32(&requestCount); got != 3 {
		t.Errorf("Expected 3 requests (1 initial + 2 retries), got %d", got)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"detail":"busy"}` {
		t.Errorf("Expected error body to be readable, got %q", body)
	}
}

func TestRetryableHTTPClient_DoesNotRetry500(t *testing.T) {
	var requestCount int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	config := DefaultRetryConfig()
	config.InitialDelay = time.Millisecond
	retryClient := NewRetryableHTTPClient(&http.Client{Timeout: 5 * time.Second}, config)

	req, _ := http.NewRequest("POST", server.URL, strings.NewReader("{}"))
	resp, err := retryClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()

	if got := atomic.LoadInt32(&requestCount); got != 1 {
		t.Errorf("Expected a single request for 500, got %d", got)
	}
}

type failingDoer struct {
	calls int
	err   error
}

func (d *failingDoer) Do(*http.Request) (*http.Response, error) {
	d.calls++
	return nil, d.err
}

func TestRetryableHTTPClient_TransportErrors(t *testing.T) {
	netErr := errors.New("connection refused")
	doer := &failingDoer{err: netErr}
	retryClient := NewRetryableHTTPClient(doer, fastRetryConfig(2))

	req, _ := http.NewRequest("GET", "http://example.invalid", nil)
	_, err := retryClient.Do(req)
	if err == nil {
		t.Fatal("Expected error after max retries")
	}
	if doer.calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", doer.calls)
	}
	if !errors.Is(err, netErr) {
		t.Errorf("Expected wrapped transport error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "after 2 retries") {
		t.Errorf("Expected error message to start with %q, got %q", "after 2 retries", err.Error())
	}
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", errors.New("dial tcp: connection refused"), true},
	}

	for _, tt := range tests {
		if got := IsTransientError(tt.err); got != tt.want {
			t.Errorf("IsTransientError(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
