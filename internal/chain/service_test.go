package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ImanolGo/Visual-Whispers/internal/api"
	"github.com/ImanolGo/Visual-Whispers/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAPIOrchestrator(t *testing.T, handler http.HandlerFunc) *Orchestrator {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	retry := utils.DefaultRetryConfig()
	retry.MaxRetries = 0
	client := api.NewClient(api.Options{BaseURL: server.URL, Retry: retry})
	return New(NewAPIService(client))
}

func TestAPIServiceChain(t *testing.T) {
	var seeds []string
	o := newAPIOrchestrator(t, func(w http.ResponseWriter, r *http.Request) {
		var req api.GenerationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		seeds = append(seeds, req.Prompt)

		switch r.URL.Path {
		case "/api/generate":
			w.Write([]byte(`{"image_urls":["u1","u1b"],"description":"a big castle","modified_prompt":"a big castle"}`))
		case "/api/continue":
			w.Write([]byte(`{"image_url":"u2","description":"a bigger castle","modified_prompt":"a huge castle"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	first, err := o.Submit(context.Background(), Input{Prompt: "a castle", Perspective: "as a child", Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, WhisperRecord{ImageURL: "u1", Description: "a big castle", Prompt: "a big castle", Iteration: 1}, first)

	second, err := o.Submit(context.Background(), Input{Perspective: "as a child", Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, WhisperRecord{ImageURL: "u2", Description: "a bigger castle", Prompt: "a huge castle", Iteration: 2}, second)

	assert.Equal(t, []string{"a castle", "a big castle"}, seeds)
}

func TestSubmitSendsOneRequest(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"detail":"busy"}`))
	}))
	defer server.Close()

	// 导出仍然带重试，生成不能被重放
	retry := utils.DefaultRetryConfig()
	retry.InitialDelay = time.Millisecond
	o := New(NewAPIService(api.NewClient(api.Options{BaseURL: server.URL, Retry: retry})))

	_, err := o.Submit(context.Background(), Input{Prompt: "a castle", Perspective: "as a child", Temperature: 0.7})
	require.Error(t, err)
	assert.Equal(t, "busy", err.Error())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.False(t, o.Snapshot().InFlight)
}

func TestAPIServiceDetailSurfaced(t *testing.T) {
	o := newAPIOrchestrator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Prompt rejected by safety filter"}`))
	})

	_, err := o.Submit(context.Background(), Input{Prompt: "a castle", Perspective: "as a child", Temperature: 0.7})

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadRequest, te.StatusCode)
	assert.Equal(t, "Prompt rejected by safety filter", te.Message)
	assert.Empty(t, o.Snapshot().History)
	assert.False(t, o.Snapshot().InFlight)
}

func TestAPIServiceMalformedResponse(t *testing.T) {
	o := newAPIOrchestrator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"image_urls":[]}`))
	})

	_, err := o.Submit(context.Background(), Input{Prompt: "a castle", Perspective: "as a child", Temperature: 0.7})

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "Failed to generate image", te.Message)
}

func TestAPIServiceUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	retry := utils.DefaultRetryConfig()
	retry.MaxRetries = 0
	o := New(NewAPIService(api.NewClient(api.Options{BaseURL: url, Retry: retry})))

	_, err := o.Submit(context.Background(), Input{Prompt: "a castle", Perspective: "as a child", Temperature: 0.7})

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, msgUnreachable, te.Message)
}

func TestExportRecords(t *testing.T) {
	out := ExportRecords([]WhisperRecord{{ImageURL: "u1", Description: "d", Prompt: "p", Iteration: 1}})
	assert.Equal(t, []api.ExportRecord{{ImageURL: "u1", Description: "d", Prompt: "p", Iteration: 1}}, out)
}
