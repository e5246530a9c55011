package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ImanolGo/Visual-Whispers/internal/api"
)

// ErrDiscarded 响应到达时链已被重置或有新的提交，结果被丢弃。不要展示给用户
var ErrDiscarded = errors.New("stale response discarded")

// ValidationError 输入不合法，没有发出任何请求
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// TransportError 访问生成服务失败，Message 可以直接展示给用户
type TransportError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	return e.Message
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// 输入校验提示
const (
	msgInFlight        = "上一张图片还在生成中"
	msgNeedPerspective = "请输入视角"
	msgNeedPrompt      = "请输入初始描述"
	msgBadTemperature  = "temperature 必须是数字"
)

// 各类请求失败时的通用提示，前两条与服务端默认信息一致
const (
	msgStartFailed    = "Failed to generate image"
	msgContinueFailed = "Failed to continue chain"
	msgUnreachable    = "无法连接生成服务"
	msgTimeout        = "生成服务响应超时"
)

// toTransportError 把生成服务返回的任意错误转换为 *TransportError
func toTransportError(kind Kind, err error) *TransportError {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return &TransportError{StatusCode: apiErr.StatusCode, Message: apiErr.Detail, Err: err}
	}

	msg := msgStartFailed
	if kind == KindContinue {
		msg = msgContinueFailed
	}
	// net.Error 和 *url.Error 都实现了 Timeout()
	var netErr interface{ Timeout() bool }
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = msgTimeout
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			msg = msgTimeout
		} else {
			msg = msgUnreachable
		}
	}
	return &TransportError{Message: msg, Err: err}
}
