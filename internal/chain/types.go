package chain

import (
	"context"
)

// WhisperRecord 链中的一步，创建后不再修改
type WhisperRecord struct {
	ImageURL    string `json:"imageUrl"`
	Description string `json:"description"`
	// Prompt 下一步使用的种子文本
	Prompt    string `json:"prompt"`
	Iteration int    `json:"iteration"`
}

// Input 表单原始输入
type Input struct {
	Prompt      string
	Perspective string
	Temperature float64
}

// Snapshot 状态副本，修改它不会影响编排器
type Snapshot struct {
	SessionID     string
	History       []WhisperRecord
	InFlight      bool
	SelectedIndex int
	Token         uint64
}

// Selected 返回当前选中的记录，历史为空时返回 false
func (s Snapshot) Selected() (WhisperRecord, bool) {
	if len(s.History) == 0 {
		return WhisperRecord{}, false
	}
	return s.History[s.SelectedIndex], true
}

// Request 发给生成服务的参数
type Request struct {
	Seed        string
	Perspective string
	Temperature float64
}

// Result 生成服务的返回
type Result struct {
	ImageURL       string
	Description    string
	ModifiedPrompt string
}

// GenerationService 远端生成服务
type GenerationService interface {
	StartChain(ctx context.Context, req Request) (Result, error)
	ContinueChain(ctx context.Context, req Request) (Result, error)
}

// Kind 请求类型
type Kind int

const (
	KindStart Kind = iota
	KindContinue
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindContinue:
		return "continue"
	default:
		return "unknown"
	}
}

// Pending 已占用在途名额、尚未完成的一次提交
type Pending struct {
	Token   uint64
	Kind    Kind
	Request Request
}

// Completion Complete 的结果
type Completion struct {
	// Record 成功时为新追加的记录
	Record *WhisperRecord
	// Err 失败时为 *TransportError
	Err error
	// Discarded 响应已过期，状态未改变
	Discarded bool
}

// Direction 导航方向
type Direction int

const (
	Previous Direction = iota
	Next
)
