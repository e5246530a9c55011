package tui

import (
	"testing"

	"github.com/ImanolGo/Visual-Whispers/internal/chain"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func testSet(name, k string, hits *[]string) *HandlerSet {
	return &HandlerSet{
		Name: name,
		Bindings: []*Binding{{
			Key: key.NewBinding(key.WithKeys(k)),
			Handle: func(*Model) tea.Cmd {
				*hits = append(*hits, name)
				return nil
			},
		}},
	}
}

func TestKeyRouterMountUnmount(t *testing.T) {
	r := NewKeyRouter()
	var hits []string

	assert.True(t, r.Mount(testSet("a", "x", &hits)))
	assert.False(t, r.Mount(testSet("a", "x", &hits)), "second mount with the same name is a no-op")
	assert.True(t, r.Mounted("a"))

	handled, _ := r.Dispatch(nil, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	assert.True(t, handled)
	assert.Equal(t, []string{"a"}, hits)

	assert.True(t, r.Unmount("a"))
	assert.False(t, r.Unmount("a"))

	handled, _ = r.Dispatch(nil, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	assert.False(t, handled, "unmounted handlers receive nothing")
	assert.Len(t, hits, 1)
}

func TestKeyRouterLastMountedWins(t *testing.T) {
	r := NewKeyRouter()
	var hits []string
	r.Mount(testSet("outer", "x", &hits))
	r.Mount(testSet("inner", "x", &hits))

	r.Dispatch(nil, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	assert.Equal(t, []string{"inner"}, hits)
}

func TestKeyRouterSkipsDisabled(t *testing.T) {
	r := NewKeyRouter()
	var hits []string
	outer := testSet("outer", "x", &hits)
	inner := testSet("inner", "x", &hits)
	inner.Bindings[0].Key.SetEnabled(false)
	r.Mount(outer)
	r.Mount(inner)

	r.Dispatch(nil, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	assert.Equal(t, []string{"outer"}, hits)
	assert.Len(t, r.FullHelp(), 2)
}

func TestIndicator(t *testing.T) {
	history := []chain.WhisperRecord{{Iteration: 1}, {Iteration: 2}, {Iteration: 3}}

	assert.Equal(t, "", Indicator(chain.Snapshot{}))
	assert.Equal(t, "  1/3 ›", Indicator(chain.Snapshot{History: history, SelectedIndex: 0}))
	assert.Equal(t, "‹ 2/3 ›", Indicator(chain.Snapshot{History: history, SelectedIndex: 1}))
	assert.Equal(t, "‹ 3/3  ", Indicator(chain.Snapshot{History: history, SelectedIndex: 2}))
}

func TestFormTemperature(t *testing.T) {
	f := NewForm("as a child", 0.7)

	f.SetTemperature(0.34)
	assert.InDelta(t, 0.3, f.Temperature(), 1e-9)

	f.SetTemperature(3)
	assert.InDelta(t, 1.0, f.Temperature(), 1e-9)

	f.SetTemperature(-1)
	assert.InDelta(t, 0.0, f.Temperature(), 1e-9)

	f.AdjustTemperature(temperatureStep)
	assert.InDelta(t, 0.1, f.Temperature(), 1e-9)
}

func TestFormHidesPromptAfterFirstRecord(t *testing.T) {
	f := NewForm("as a child", 0.5)
	assert.Equal(t, fieldPrompt, f.field)

	f.SetShowPrompt(false)
	assert.Equal(t, fieldPerspective, f.field)
	assert.Empty(t, f.Input().Prompt)
	assert.Equal(t, "as a child", f.Input().Perspective)

	f.NextField()
	f.PrevField()
	assert.Equal(t, fieldPerspective, f.field, "prompt stays unreachable while hidden")
}
