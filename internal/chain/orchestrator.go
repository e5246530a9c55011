package chain

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/ImanolGo/Visual-Whispers/internal/events"
	"github.com/ImanolGo/Visual-Whispers/internal/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Orchestrator 链编排器，持有历史、在途标记和当前选中位置。
// 所有状态修改都在同一把锁内完成，外部只能通过 Snapshot 读取副本
type Orchestrator struct {
	svc    GenerationService
	logger *zap.Logger
	bus    events.Bus
	newID  func() string

	mu            sync.Mutex
	sessionID     string
	history       []WhisperRecord
	inFlight      bool
	selectedIndex int
	// token 每次提交和重置都递增，响应只有在 token 仍匹配时才会被应用
	token uint64
}

// Option 编排器选项
type Option func(*Orchestrator)

func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithBus 生命周期事件发布到 bus
func WithBus(bus events.Bus) Option {
	return func(o *Orchestrator) {
		o.bus = bus
	}
}

// WithIDGenerator 替换会话 ID 生成函数
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// New 创建编排器，初始状态为空历史
func New(svc GenerationService, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		svc:    svc,
		logger: logger.Nop(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.sessionID = o.newID()
	return o
}

// Submit 同步完成一次提交：Begin、Execute、Complete。
// 响应过期时返回 ErrDiscarded
func (o *Orchestrator) Submit(ctx context.Context, in Input) (WhisperRecord, error) {
	pending, err := o.Begin(in)
	if err != nil {
		return WhisperRecord{}, err
	}

	res, err := o.Execute(ctx, pending)
	completion := o.Complete(pending, res, err)

	switch {
	case completion.Discarded:
		return WhisperRecord{}, ErrDiscarded
	case completion.Err != nil:
		return WhisperRecord{}, completion.Err
	default:
		return *completion.Record, nil
	}
}

// Begin 校验输入并占用在途名额。失败时返回 *ValidationError，状态不变
func (o *Orchestrator) Begin(in Input) (Pending, error) {
	o.mu.Lock()

	if o.inFlight {
		o.mu.Unlock()
		return Pending{}, &ValidationError{Field: "submit", Message: msgInFlight}
	}

	perspective := strings.TrimSpace(in.Perspective)
	if perspective == "" {
		o.mu.Unlock()
		return Pending{}, &ValidationError{Field: "perspective", Message: msgNeedPerspective}
	}

	if math.IsNaN(in.Temperature) {
		o.mu.Unlock()
		return Pending{}, &ValidationError{Field: "temperature", Message: msgBadTemperature}
	}

	req := Request{
		Perspective: perspective,
		Temperature: ClampTemperature(in.Temperature),
	}

	var kind Kind
	if len(o.history) == 0 {
		prompt := strings.TrimSpace(in.Prompt)
		if prompt == "" {
			o.mu.Unlock()
			return Pending{}, &ValidationError{Field: "prompt", Message: msgNeedPrompt}
		}
		kind = KindStart
		req.Seed = prompt
	} else {
		// 已有历史时忽略传入的 prompt
		kind = KindContinue
		req.Seed = seedOf(o.history[len(o.history)-1])
	}

	o.token++
	o.inFlight = true
	pending := Pending{Token: o.token, Kind: kind, Request: req}
	sessionID := o.sessionID
	o.mu.Unlock()

	o.logger.Info("提交生成请求",
		zap.String("session_id", sessionID),
		zap.Uint64("token", pending.Token),
		zap.Stringer("kind", kind),
		zap.Float64("temperature", req.Temperature))
	o.publish(events.NewChainSubmitted(sessionID, pending.Token, kind.String(), req.Seed))

	return pending, nil
}

// Execute 对生成服务发起恰好一次调用，不修改状态
func (o *Orchestrator) Execute(ctx context.Context, p Pending) (Result, error) {
	if p.Kind == KindStart {
		return o.svc.StartChain(ctx, p.Request)
	}
	return o.svc.ContinueChain(ctx, p.Request)
}

// Complete 应用一次响应。token 不再匹配时丢弃，不修改任何状态
func (o *Orchestrator) Complete(p Pending, res Result, err error) Completion {
	o.mu.Lock()

	if p.Token != o.token {
		current, sessionID := o.token, o.sessionID
		o.mu.Unlock()

		o.logger.Debug("丢弃过期响应",
			zap.String("session_id", sessionID),
			zap.Uint64("token", p.Token),
			zap.Uint64("current_token", current))
		o.publish(events.NewChainDiscarded(sessionID, p.Token, current))
		return Completion{Discarded: true}
	}

	o.inFlight = false
	sessionID := o.sessionID

	if err != nil {
		o.mu.Unlock()

		te := toTransportError(p.Kind, err)
		o.logger.Warn("生成失败",
			zap.String("session_id", sessionID),
			zap.Stringer("kind", p.Kind),
			zap.Int("status_code", te.StatusCode),
			zap.Error(err))
		o.publish(events.NewChainFailed(sessionID, te.StatusCode, te.Message))
		return Completion{Err: te}
	}

	record := WhisperRecord{
		ImageURL:    res.ImageURL,
		Description: res.Description,
		Prompt:      res.ModifiedPrompt,
		Iteration:   len(o.history) + 1,
	}
	if strings.TrimSpace(record.Prompt) == "" {
		record.Prompt = res.Description
	}
	o.history = append(o.history, record)
	o.selectedIndex = len(o.history) - 1
	o.mu.Unlock()

	o.logger.Info("追加记录",
		zap.String("session_id", sessionID),
		zap.Int("iteration", record.Iteration))
	o.publish(events.NewChainAppended(sessionID, record.Iteration, record.ImageURL))

	return Completion{Record: &record}
}

// Reset 清空历史并开启新会话。在途请求的响应到达后会被丢弃
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	previous := o.sessionID
	cleared := len(o.history)

	o.history = nil
	o.inFlight = false
	o.selectedIndex = 0
	o.token++
	o.sessionID = o.newID()
	sessionID := o.sessionID
	o.mu.Unlock()

	o.logger.Info("重置链",
		zap.String("previous_session_id", previous),
		zap.String("session_id", sessionID),
		zap.Int("cleared", cleared))
	o.publish(events.NewChainReset(previous, sessionID, cleared))
}

// SelectIndex 选中第 i 条记录，越界时夹到合法范围
func (o *Orchestrator) SelectIndex(i int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.history) == 0 {
		return
	}
	o.selectedIndex = clampIndex(i, len(o.history))
}

// Navigate 前后移动一条，到边界时不动
func (o *Orchestrator) Navigate(dir Direction) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.history) == 0 {
		return
	}
	switch dir {
	case Previous:
		o.selectedIndex = clampIndex(o.selectedIndex-1, len(o.history))
	case Next:
		o.selectedIndex = clampIndex(o.selectedIndex+1, len(o.history))
	}
}

// Snapshot 返回当前状态的一致副本
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	return Snapshot{
		SessionID:     o.sessionID,
		History:       o.copyHistory(),
		InFlight:      o.inFlight,
		SelectedIndex: o.selectedIndex,
		Token:         o.token,
	}
}

// Records 返回历史副本，用于导出
func (o *Orchestrator) Records() []WhisperRecord {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.copyHistory()
}

func (o *Orchestrator) copyHistory() []WhisperRecord {
	if len(o.history) == 0 {
		return []WhisperRecord{}
	}
	out := make([]WhisperRecord, len(o.history))
	copy(out, o.history)
	return out
}

func (o *Orchestrator) publish(e events.Event) {
	if o.bus != nil {
		o.bus.Publish(e)
	}
}

// ClampTemperature 把 temperature 限制在 [0, 1]
func ClampTemperature(t float64) float64 {
	switch {
	case t < 0:
		return 0
	case t > 1:
		return 1
	default:
		return t
	}
}

// seedOf 优先使用 prompt，为空时退回 description
func seedOf(r WhisperRecord) string {
	if strings.TrimSpace(r.Prompt) != "" {
		return r.Prompt
	}
	return r.Description
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}
