package chain

import (
	"context"

	"github.com/ImanolGo/Visual-Whispers/internal/api"
)

// APIService 用 api.Client 实现 GenerationService
type APIService struct {
	client *api.Client
}

func NewAPIService(client *api.Client) *APIService {
	return &APIService{client: client}
}

func (s *APIService) StartChain(ctx context.Context, req Request) (Result, error) {
	resp, err := s.client.Generate(ctx, toAPIRequest(req))
	if err != nil {
		return Result{}, err
	}
	return Result{
		ImageURL:       resp.ImageURLs[0],
		Description:    resp.Description,
		ModifiedPrompt: resp.ModifiedPrompt,
	}, nil
}

func (s *APIService) ContinueChain(ctx context.Context, req Request) (Result, error) {
	resp, err := s.client.Continue(ctx, toAPIRequest(req))
	if err != nil {
		return Result{}, err
	}
	return Result{
		ImageURL:       resp.ImageURL,
		Description:    resp.Description,
		ModifiedPrompt: resp.ModifiedPrompt,
	}, nil
}

func toAPIRequest(req Request) api.GenerationRequest {
	return api.GenerationRequest{
		Prompt:      req.Seed,
		Perspective: req.Perspective,
		Temperature: req.Temperature,
	}
}

// ExportRecords 把历史转换为下载接口需要的格式
func ExportRecords(records []WhisperRecord) []api.ExportRecord {
	out := make([]api.ExportRecord, len(records))
	for i, r := range records {
		out[i] = api.ExportRecord{
			ImageURL:    r.ImageURL,
			Description: r.Description,
			Prompt:      r.Prompt,
			Iteration:   r.Iteration,
		}
	}
	return out
}
