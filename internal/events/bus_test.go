package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type priorityHandler struct {
	priority int
	name     string
	calls    *[]string
	accept   bool
}

func (h *priorityHandler) CanHandle(Event) bool { return h.accept }
func (h *priorityHandler) Priority() int        { return h.priority }
func (h *priorityHandler) Handle(Event) error {
	*h.calls = append(*h.calls, h.name)
	return nil
}

func TestPublishOrdersByPriority(t *testing.T) {
	bus := NewMemoryBus(nil)
	var calls []string

	bus.Subscribe(TypeChainReset, &priorityHandler{priority: 10, name: "late", calls: &calls, accept: true})
	bus.Subscribe(TypeChainReset, &priorityHandler{priority: 1, name: "early", calls: &calls, accept: true})
	bus.Subscribe(TypeChainReset, &priorityHandler{priority: 5, name: "skipped", calls: &calls, accept: false})

	bus.Publish(NewChainReset("a", "b", 3))

	assert.Equal(t, []string{"early", "late"}, calls)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(nil)
	count := 0
	unsubscribe := bus.Subscribe(TypeChainAppended, HandlerFunc(func(Event) error {
		count++
		return nil
	}))

	bus.Publish(NewChainAppended("s", 1, "u"))
	unsubscribe()
	unsubscribe()
	bus.Publish(NewChainAppended("s", 2, "u"))

	assert.Equal(t, 1, count)
}

func TestPublishOnlyMatchingType(t *testing.T) {
	bus := NewMemoryBus(nil)
	var got []Event
	bus.Subscribe(TypeChainFailed, HandlerFunc(func(e Event) error {
		got = append(got, e)
		return nil
	}))

	bus.Publish(NewChainSubmitted("s", 1, "start", "a cat"))
	bus.Publish(NewChainFailed("s", 500, "Failed to generate image"))

	require.Len(t, got, 1)
	failed, ok := got[0].(*ChainFailed)
	require.True(t, ok)
	assert.Equal(t, 500, failed.StatusCode)
	assert.Equal(t, "Failed to generate image", failed.Data()["message"])
	assert.False(t, failed.Timestamp().IsZero())
}

func TestHandlerErrorsReported(t *testing.T) {
	var reported error
	bus := NewMemoryBus(func(_ Event, err error) { reported = err })
	boom := errors.New("boom")
	bus.Subscribe(TypeChainDiscarded, HandlerFunc(func(Event) error { return boom }))

	bus.Publish(NewChainDiscarded("s", 1, 2))

	assert.ErrorIs(t, reported, boom)
}

func TestClear(t *testing.T) {
	bus := NewMemoryBus(nil)
	called := false
	bus.Subscribe(TypeChainReset, HandlerFunc(func(Event) error {
		called = true
		return nil
	}))

	bus.Clear()
	bus.Publish(NewChainReset("a", "b", 0))

	assert.False(t, called)
}
