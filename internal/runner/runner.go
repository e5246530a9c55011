package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ImanolGo/Visual-Whispers/internal/chain"
	"github.com/ImanolGo/Visual-Whispers/internal/logger"
	"go.uber.org/zap"
)

// Options 无界面运行参数
type Options struct {
	Prompt      string
	Perspective string
	Temperature float64
	// Hops 链的总步数，至少为 1
	Hops int
	// JSON 每条记录输出一行 JSON
	JSON bool
}

// Chain 运行需要的编排器能力
type Chain interface {
	Submit(ctx context.Context, in chain.Input) (chain.WhisperRecord, error)
	Records() []chain.WhisperRecord
}

// Runner 在终端外运行整条链
type Runner struct {
	chain  Chain
	out    io.Writer
	logger *zap.Logger
}

func New(c Chain, out io.Writer, log *zap.Logger) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{chain: c, out: out, logger: log}
}

// Run 先提交第一步，再继续 Hops-1 步，遇到第一个错误就停止。
// 返回已经生成的记录
func (r *Runner) Run(ctx context.Context, opts Options) ([]chain.WhisperRecord, error) {
	hops := opts.Hops
	if hops < 1 {
		hops = 1
	}

	in := chain.Input{
		Prompt:      opts.Prompt,
		Perspective: opts.Perspective,
		Temperature: opts.Temperature,
	}

	for i := 0; i < hops; i++ {
		if err := ctx.Err(); err != nil {
			return r.chain.Records(), err
		}

		record, err := r.chain.Submit(ctx, in)
		if err != nil {
			if errors.Is(err, chain.ErrDiscarded) {
				r.logger.Info("链已被重置，停止运行")
				return r.chain.Records(), nil
			}
			return r.chain.Records(), fmt.Errorf("第 %d 步失败: %w", i+1, err)
		}

		if err := r.print(record, opts.JSON); err != nil {
			return r.chain.Records(), err
		}
	}

	return r.chain.Records(), nil
}

func (r *Runner) print(record chain.WhisperRecord, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(r.out).Encode(record)
	}
	_, err := fmt.Fprintf(r.out, "#%d %s\n   %s\n   next: %s\n",
		record.Iteration, record.ImageURL, record.Description, record.Prompt)
	return err
}
