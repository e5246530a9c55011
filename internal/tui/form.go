package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/ImanolGo/Visual-Whispers/internal/chain"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const temperatureStep = 0.1

type formField int

const (
	fieldPrompt formField = iota
	fieldPerspective
)

// Form 提交表单：初始 prompt、perspective、temperature
type Form struct {
	prompt      textinput.Model
	perspective textinput.Model
	temperature float64
	field       formField
	// showPrompt 只有历史为空时才显示 prompt 输入框
	showPrompt bool
	focused    bool
}

func NewForm(perspective string, temperature float64) Form {
	prompt := textinput.New()
	prompt.Placeholder = "输入初始描述，例如: a lighthouse in a storm"
	prompt.Prompt = "Prompt      › "
	prompt.CharLimit = 1000

	persp := textinput.New()
	persp.Placeholder = "as a medieval peasant"
	persp.Prompt = "Perspective › "
	persp.CharLimit = 200
	persp.SetValue(perspective)

	f := Form{
		prompt:      prompt,
		perspective: persp,
		temperature: chain.ClampTemperature(temperature),
		showPrompt:  true,
	}
	f.Focus()
	return f
}

// Focus 聚焦当前字段
func (f *Form) Focus() tea.Cmd {
	f.focused = true
	if f.field == fieldPrompt && !f.showPrompt {
		f.field = fieldPerspective
	}
	if f.field == fieldPrompt {
		f.perspective.Blur()
		return f.prompt.Focus()
	}
	f.prompt.Blur()
	return f.perspective.Focus()
}

func (f *Form) Blur() {
	f.focused = false
	f.prompt.Blur()
	f.perspective.Blur()
}

func (f *Form) NextField() tea.Cmd {
	if f.showPrompt && f.field == fieldPrompt {
		f.field = fieldPerspective
	}
	return f.Focus()
}

func (f *Form) PrevField() tea.Cmd {
	if f.showPrompt && f.field == fieldPerspective {
		f.field = fieldPrompt
	}
	return f.Focus()
}

// SetShowPrompt 控制 prompt 输入框是否显示
func (f *Form) SetShowPrompt(show bool) {
	if f.showPrompt == show {
		return
	}
	f.showPrompt = show
	if show {
		f.field = fieldPrompt
	} else {
		f.field = fieldPerspective
	}
	if f.focused {
		f.Focus()
	}
}

func (f *Form) ClearPrompt() {
	f.prompt.Reset()
}

// ActiveValue 当前字段的内容，用于识别斜杠命令
func (f *Form) ActiveValue() string {
	if f.field == fieldPrompt {
		return f.prompt.Value()
	}
	return f.perspective.Value()
}

// ClearActive 清掉当前字段里输入的命令
func (f *Form) ClearActive(restore string) {
	if f.field == fieldPrompt {
		f.prompt.Reset()
		return
	}
	f.perspective.Reset()
	f.perspective.SetValue(restore)
}

func (f *Form) AdjustTemperature(delta float64) {
	f.SetTemperature(f.temperature + delta)
}

// SetTemperature 按 0.1 取整并限制在 [0, 1]
func (f *Form) SetTemperature(t float64) {
	if math.IsNaN(t) {
		return
	}
	f.temperature = chain.ClampTemperature(math.Round(t*10) / 10)
}

func (f Form) Temperature() float64 {
	return f.temperature
}

func (f Form) Input() chain.Input {
	in := chain.Input{
		Perspective: f.perspective.Value(),
		Temperature: f.temperature,
	}
	if f.showPrompt {
		in.Prompt = f.prompt.Value()
	}
	return in
}

func (f *Form) SetWidth(width int) {
	w := width - 16
	if w < 10 {
		w = 10
	}
	f.prompt.Width = w
	f.perspective.Width = w
}

// Update 把按键交给当前字段
func (f Form) Update(msg tea.Msg) (Form, tea.Cmd) {
	var cmd tea.Cmd
	if f.field == fieldPrompt {
		f.prompt, cmd = f.prompt.Update(msg)
	} else {
		f.perspective, cmd = f.perspective.Update(msg)
	}
	return f, cmd
}

func (f Form) View(inFlight bool) string {
	var sb strings.Builder
	if f.showPrompt {
		sb.WriteString(f.prompt.View())
		sb.WriteString("\n")
	}
	sb.WriteString(f.perspective.View())
	sb.WriteString("\n")
	sb.WriteString(temperatureBar(f.temperature))

	button := buttonStyle.Render(" 生成 ")
	if inFlight {
		button = disabledButtonStyle.Render(" 生成中 ")
	}
	sb.WriteString("   ")
	sb.WriteString(button)
	return sb.String()
}

// temperatureBar 渲染 0.0 到 1.0 的滑块
func temperatureBar(t float64) string {
	filled := int(math.Round(t * 10))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
	return fmt.Sprintf("Temperature   %s %.1f", sliderStyle.Render(bar), t)
}
