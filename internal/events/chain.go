package events

// 链生命周期事件类型
const (
	TypeChainSubmitted = "chain.submitted"
	TypeChainAppended  = "chain.appended"
	TypeChainFailed    = "chain.failed"
	TypeChainDiscarded = "chain.discarded"
	TypeChainReset     = "chain.reset"
)

// ChainSubmitted 一次生成请求已发出
type ChainSubmitted struct {
	*BaseEvent
	SessionID string
	Token     uint64
	Kind      string
	Seed      string
}

func NewChainSubmitted(sessionID string, token uint64, kind, seed string) *ChainSubmitted {
	return &ChainSubmitted{
		BaseEvent: NewBaseEvent(TypeChainSubmitted, map[string]any{
			"session_id": sessionID,
			"token":      token,
			"kind":       kind,
			"seed":       seed,
		}),
		SessionID: sessionID,
		Token:     token,
		Kind:      kind,
		Seed:      seed,
	}
}

// ChainAppended 新记录已追加到历史
type ChainAppended struct {
	*BaseEvent
	SessionID string
	Iteration int
	ImageURL  string
}

func NewChainAppended(sessionID string, iteration int, imageURL string) *ChainAppended {
	return &ChainAppended{
		BaseEvent: NewBaseEvent(TypeChainAppended, map[string]any{
			"session_id": sessionID,
			"iteration":  iteration,
			"image_url":  imageURL,
		}),
		SessionID: sessionID,
		Iteration: iteration,
		ImageURL:  imageURL,
	}
}

// ChainFailed 生成失败，历史不变
type ChainFailed struct {
	*BaseEvent
	SessionID  string
	StatusCode int
	Message    string
}

func NewChainFailed(sessionID string, statusCode int, message string) *ChainFailed {
	return &ChainFailed{
		BaseEvent: NewBaseEvent(TypeChainFailed, map[string]any{
			"session_id":  sessionID,
			"status_code": statusCode,
			"message":     message,
		}),
		SessionID:  sessionID,
		StatusCode: statusCode,
		Message:    message,
	}
}

// ChainDiscarded 过期响应被丢弃
type ChainDiscarded struct {
	*BaseEvent
	SessionID    string
	Token        uint64
	CurrentToken uint64
}

func NewChainDiscarded(sessionID string, token, current uint64) *ChainDiscarded {
	return &ChainDiscarded{
		BaseEvent: NewBaseEvent(TypeChainDiscarded, map[string]any{
			"session_id":    sessionID,
			"token":         token,
			"current_token": current,
		}),
		SessionID:    sessionID,
		Token:        token,
		CurrentToken: current,
	}
}

// ChainReset 链被清空
type ChainReset struct {
	*BaseEvent
	PreviousSessionID string
	SessionID         string
	Cleared           int
}

func NewChainReset(previous, sessionID string, cleared int) *ChainReset {
	return &ChainReset{
		BaseEvent: NewBaseEvent(TypeChainReset, map[string]any{
			"previous_session_id": previous,
			"session_id":          sessionID,
			"cleared":             cleared,
		}),
		PreviousSessionID: previous,
		SessionID:         sessionID,
		Cleared:           cleared,
	}
}
