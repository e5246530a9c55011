package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Binding 一个按键及其处理函数
type Binding struct {
	Key    key.Binding
	Handle func(m *Model) tea.Cmd
}

// HandlerSet 随组件挂载和卸载的一组按键处理器
type HandlerSet struct {
	Name     string
	Bindings []*Binding
}

// KeyRouter 只把按键分发给当前已挂载的处理器集合，没有全局监听
type KeyRouter struct {
	sets []*HandlerSet
}

func NewKeyRouter() *KeyRouter {
	return &KeyRouter{}
}

// Mount 挂载处理器集合，已挂载时返回 false。后挂载的优先匹配
func (r *KeyRouter) Mount(set *HandlerSet) bool {
	if r.Mounted(set.Name) {
		return false
	}
	r.sets = append(r.sets, set)
	return true
}

// Unmount 卸载指定名称的集合
func (r *KeyRouter) Unmount(name string) bool {
	for i, s := range r.sets {
		if s.Name == name {
			r.sets = append(r.sets[:i:i], r.sets[i+1:]...)
			return true
		}
	}
	return false
}

func (r *KeyRouter) Mounted(name string) bool {
	for _, s := range r.sets {
		if s.Name == name {
			return true
		}
	}
	return false
}

// Dispatch 找到第一个匹配且启用的按键并执行
func (r *KeyRouter) Dispatch(m *Model, msg tea.KeyMsg) (bool, tea.Cmd) {
	for i := len(r.sets) - 1; i >= 0; i-- {
		for _, b := range r.sets[i].Bindings {
			if b.Key.Enabled() && key.Matches(msg, b.Key) {
				return true, b.Handle(m)
			}
		}
	}
	return false, nil
}

// ShortHelp 实现 help.KeyMap
func (r *KeyRouter) ShortHelp() []key.Binding {
	var out []key.Binding
	for i := len(r.sets) - 1; i >= 0; i-- {
		for _, b := range r.sets[i].Bindings {
			out = append(out, b.Key)
		}
	}
	return out
}

// FullHelp 每个集合一列
func (r *KeyRouter) FullHelp() [][]key.Binding {
	var out [][]key.Binding
	for i := len(r.sets) - 1; i >= 0; i-- {
		var col []key.Binding
		for _, b := range r.sets[i].Bindings {
			col = append(col, b.Key)
		}
		out = append(out, col)
	}
	return out
}

const (
	setGlobal  = "global"
	setForm    = "form"
	setHistory = "history"
)

// keyMap 所有按键，按组件分组
type keyMap struct {
	Quit       *Binding
	SwitchPane *Binding
	Reset      *Binding
	Download   *Binding
	ToggleHelp *Binding

	Submit     *Binding
	NextField  *Binding
	PrevField  *Binding
	WarmerTemp *Binding
	CoolerTemp *Binding

	Previous *Binding
	Next     *Binding
	First    *Binding
	Last     *Binding
	ScrollUp *Binding
	ScrollDn *Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Quit: &Binding{
			Key:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "退出")),
			Handle: (*Model).quit,
		},
		SwitchPane: &Binding{
			Key:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "切换面板")),
			Handle: (*Model).switchPane,
		},
		Reset: &Binding{
			Key:    key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "重新开始")),
			Handle: (*Model).reset,
		},
		Download: &Binding{
			Key:    key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "下载")),
			Handle: func(m *Model) tea.Cmd { return m.download("") },
		},
		ToggleHelp: &Binding{
			Key:    key.NewBinding(key.WithKeys("f1"), key.WithHelp("f1", "帮助")),
			Handle: (*Model).toggleHelp,
		},

		Submit: &Binding{
			Key:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "生成")),
			Handle: (*Model).submit,
		},
		NextField: &Binding{
			Key:    key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "下一项")),
			Handle: func(m *Model) tea.Cmd { return m.form.NextField() },
		},
		PrevField: &Binding{
			Key:    key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "上一项")),
			Handle: func(m *Model) tea.Cmd { return m.form.PrevField() },
		},
		WarmerTemp: &Binding{
			Key:    key.NewBinding(key.WithKeys("ctrl+up", "pgup"), key.WithHelp("pgup", "温度+0.1")),
			Handle: func(m *Model) tea.Cmd { m.form.AdjustTemperature(temperatureStep); return nil },
		},
		CoolerTemp: &Binding{
			Key:    key.NewBinding(key.WithKeys("ctrl+down", "pgdown"), key.WithHelp("pgdn", "温度-0.1")),
			Handle: func(m *Model) tea.Cmd { m.form.AdjustTemperature(-temperatureStep); return nil },
		},

		Previous: &Binding{
			Key:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "上一张")),
			Handle: func(m *Model) tea.Cmd { return m.navigate(navPrevious) },
		},
		Next: &Binding{
			Key:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "下一张")),
			Handle: func(m *Model) tea.Cmd { return m.navigate(navNext) },
		},
		First: &Binding{
			Key:    key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "第一张")),
			Handle: func(m *Model) tea.Cmd { return m.navigate(navFirst) },
		},
		Last: &Binding{
			Key:    key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "最新")),
			Handle: func(m *Model) tea.Cmd { return m.navigate(navLast) },
		},
		ScrollUp: &Binding{
			Key:    key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "滚动")),
			Handle: func(m *Model) tea.Cmd { m.history.ScrollUp(); return nil },
		},
		ScrollDn: &Binding{
			Key:    key.NewBinding(key.WithKeys("down", "j")),
			Handle: func(m *Model) tea.Cmd { m.history.ScrollDown(); return nil },
		},
	}
}

func (k keyMap) globalSet() *HandlerSet {
	return &HandlerSet{Name: setGlobal, Bindings: []*Binding{k.Quit, k.SwitchPane, k.Reset, k.Download, k.ToggleHelp}}
}

func (k keyMap) formSet() *HandlerSet {
	return &HandlerSet{Name: setForm, Bindings: []*Binding{k.Submit, k.NextField, k.PrevField, k.WarmerTemp, k.CoolerTemp}}
}

func (k keyMap) historySet() *HandlerSet {
	return &HandlerSet{Name: setHistory, Bindings: []*Binding{k.Previous, k.Next, k.First, k.Last, k.ScrollUp, k.ScrollDn}}
}
