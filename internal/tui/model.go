package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ImanolGo/Visual-Whispers/internal/api"
	"github.com/ImanolGo/Visual-Whispers/internal/chain"
	"github.com/ImanolGo/Visual-Whispers/internal/logger"
	"github.com/ImanolGo/Visual-Whispers/internal/utils"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

// Version 当前版本，由 main 包设置
var Version string

// Downloader 导出整条链
type Downloader interface {
	Download(ctx context.Context, records []api.ExportRecord) (*api.Artifact, error)
}

// SettingsStore 持久化表单里的视角和温度
type SettingsStore interface {
	SaveSettings(perspective string, temperature float64) (string, error)
}

type Options struct {
	Orchestrator *chain.Orchestrator
	Downloader   Downloader
	Settings     SettingsStore
	Perspective  string
	Temperature  float64
	ExportDir    string
	// GlamourStyle 为空时自动检测
	GlamourStyle string
	Logger       *zap.Logger
}

type focusArea int

const (
	focusForm focusArea = iota
	focusHistory
)

type navTarget int

const (
	navPrevious navTarget = iota
	navNext
	navFirst
	navLast
)

// 表单、指示器、错误行、状态行和帮助占用的行数
const reservedRows = 14

type Model struct {
	orch       *chain.Orchestrator
	downloader Downloader
	settings   SettingsStore
	exportDir  string
	logger     *zap.Logger

	form    Form
	history HistoryView
	spinner spinner.Model
	help    help.Model
	keys    keyMap
	sets    map[string]*HandlerSet
	router  *KeyRouter
	parser  *CommandParser

	focus           focusArea
	lastPerspective string
	// errMsg 生成失败或输入不合法，下次成功或重置时清除
	errMsg      string
	notice      string
	noticeErr   bool
	downloading bool

	width  int
	height int
	ready  bool

	ctx    context.Context
	cancel context.CancelFunc
}

func NewModel(opts Options) Model {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = sliderStyle

	keys := newKeyMap()
	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		orch:            opts.Orchestrator,
		downloader:      opts.Downloader,
		settings:        opts.Settings,
		exportDir:       opts.ExportDir,
		logger:          log,
		form:            NewForm(opts.Perspective, opts.Temperature),
		history:         NewHistoryView(opts.GlamourStyle),
		spinner:         s,
		help:            help.New(),
		keys:            keys,
		router:          NewKeyRouter(),
		parser:          NewCommandParser(),
		focus:           focusForm,
		lastPerspective: opts.Perspective,
		sets: map[string]*HandlerSet{
			setGlobal:  keys.globalSet(),
			setForm:    keys.formSet(),
			setHistory: keys.historySet(),
		},
		ctx:    ctx,
		cancel: cancel,
	}

	m.router.Mount(m.sets[setGlobal])
	m.syncKeySets()
	m.history.Refresh(m.orch.Snapshot())
	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if handled, cmd := m.router.Dispatch(&m, msg); handled {
			m.syncKeySets()
			return m, cmd
		}
		if m.focus != focusForm {
			return m, nil
		}

	case generationDoneMsg:
		m.completeGeneration(msg)
		return m, nil

	case downloadDoneMsg:
		m.downloading = false
		if msg.Err != nil {
			m.setNotice("导出失败: "+msg.Err.Error(), true)
		} else {
			m.setNotice("已保存到 "+msg.Path, false)
		}
		m.syncKeySets()
		return m, nil

	case settingsSavedMsg:
		if msg.Err != nil {
			m.setNotice("保存失败: "+msg.Err.Error(), true)
		} else {
			m.setNotice("已保存到 "+msg.Path, false)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.orch.Snapshot().InFlight {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.form, cmd = m.form.Update(msg)
	return m, cmd
}

// submit 处理 Enter：斜杠命令或一次生成
func (m *Model) submit() tea.Cmd {
	if command := m.parser.Parse(m.form.ActiveValue()); command != nil {
		m.form.ClearActive(m.lastPerspective)
		return m.runCommand(command)
	}

	// 按钮已禁用，这里只是兜底
	if m.orch.Snapshot().InFlight {
		return nil
	}

	pending, err := m.orch.Begin(m.form.Input())
	if err != nil {
		var ve *chain.ValidationError
		if errors.As(err, &ve) {
			m.errMsg = ve.Message
		} else {
			m.errMsg = err.Error()
		}
		return nil
	}

	m.lastPerspective = pending.Request.Perspective
	m.notice = ""
	return tea.Batch(m.spinner.Tick, generateCmd(m.ctx, m.orch, pending))
}

func generateCmd(ctx context.Context, orch *chain.Orchestrator, p chain.Pending) tea.Cmd {
	return func() tea.Msg {
		res, err := orch.Execute(ctx, p)
		return generationDoneMsg{Pending: p, Result: res, Err: err}
	}
}

func (m *Model) completeGeneration(msg generationDoneMsg) {
	c := m.orch.Complete(msg.Pending, msg.Result, msg.Err)
	switch {
	case c.Discarded:
		// 重置之后到达的响应，界面不变
		return
	case c.Err != nil:
		m.errMsg = c.Err.Error()
	default:
		m.errMsg = ""
		if c.Record.Iteration == 1 {
			m.form.ClearPrompt()
			m.form.SetShowPrompt(false)
		}
		m.setNotice(fmt.Sprintf("第 %d 张已生成", c.Record.Iteration), false)
	}
	m.history.Refresh(m.orch.Snapshot())
	m.syncKeySets()
}

func (m *Model) reset() tea.Cmd {
	m.orch.Reset()
	m.errMsg = ""
	m.downloading = false
	m.setNotice("已重新开始", false)
	m.form.ClearPrompt()
	m.form.SetShowPrompt(true)
	m.focus = focusForm
	cmd := m.form.Focus()
	m.history.Refresh(m.orch.Snapshot())
	m.syncKeySets()
	return cmd
}

func (m *Model) navigate(target navTarget) tea.Cmd {
	switch target {
	case navPrevious:
		m.orch.Navigate(chain.Previous)
	case navNext:
		m.orch.Navigate(chain.Next)
	case navFirst:
		m.orch.SelectIndex(0)
	case navLast:
		m.orch.SelectIndex(len(m.orch.Records()) - 1)
	}
	m.history.Refresh(m.orch.Snapshot())
	return nil
}

func (m *Model) switchPane() tea.Cmd {
	if m.focus == focusForm && len(m.orch.Records()) > 0 {
		m.focus = focusHistory
		m.form.Blur()
		return nil
	}
	m.focus = focusForm
	return m.form.Focus()
}

func (m *Model) download(dir string) tea.Cmd {
	records := m.orch.Records()
	if len(records) == 0 {
		m.setNotice("还没有可导出的图片", true)
		return nil
	}
	if m.downloader == nil {
		m.setNotice("导出不可用", true)
		return nil
	}
	if m.downloading {
		return nil
	}
	if dir == "" {
		dir = m.exportDir
	}

	m.downloading = true
	m.setNotice("正在导出...", false)
	return downloadCmd(m.ctx, m.downloader, m.logger, records, dir)
}

func downloadCmd(ctx context.Context, d Downloader, log *zap.Logger, records []chain.WhisperRecord, dir string) tea.Cmd {
	return func() tea.Msg {
		artifact, err := d.Download(ctx, chain.ExportRecords(records))
		if err != nil {
			return downloadDoneMsg{Err: err}
		}
		path, err := utils.WriteArtifact(dir, artifact.Filename, artifact.Data)
		if err != nil {
			return downloadDoneMsg{Err: err}
		}
		log.Info("导出完成", zap.String("path", path), zap.Int("records", len(records)))
		return downloadDoneMsg{Path: path}
	}
}

func (m *Model) runCommand(c *Command) tea.Cmd {
	m.logger.Debug("执行命令", zap.String("command", FormatCommandType(c.Type)))
	if c.Err != "" {
		m.setNotice(c.Err, true)
		return nil
	}

	switch c.Type {
	case CommandTypeReset:
		// 斜杠命令在生成过程中也可以重置，未返回的响应会被丢弃
		return m.reset()
	case CommandTypeDownload:
		return m.download(c.Path)
	case CommandTypeGoto:
		m.orch.SelectIndex(c.Index - 1)
		m.history.Refresh(m.orch.Snapshot())
	case CommandTypeTemp:
		m.form.SetTemperature(c.Temperature)
		m.setNotice(fmt.Sprintf("temperature = %.1f", m.form.Temperature()), false)
	case CommandTypeHelp:
		m.setNotice(commandHelp, false)
	case CommandTypeSave:
		return m.saveSettings()
	case CommandTypeQuit:
		return m.quit()
	}
	return nil
}

func (m *Model) saveSettings() tea.Cmd {
	if m.settings == nil {
		m.setNotice("保存不可用", true)
		return nil
	}
	in := m.form.Input()
	store := m.settings
	return func() tea.Msg {
		path, err := store.SaveSettings(in.Perspective, in.Temperature)
		return settingsSavedMsg{Path: path, Err: err}
	}
}

func (m *Model) quit() tea.Cmd {
	m.cancel()
	return tea.Quit
}

func (m *Model) toggleHelp() tea.Cmd {
	m.help.ShowAll = !m.help.ShowAll
	return nil
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
}

// syncKeySets 按当前状态挂载或卸载各组件的按键
func (m *Model) syncKeySets() {
	snap := m.orch.Snapshot()
	hasHistory := len(snap.History) > 0

	// Enter 保持可用以便输入斜杠命令，生成中的提交由 submit 拦下
	m.keys.Reset.Key.SetEnabled(!snap.InFlight)
	m.keys.Download.Key.SetEnabled(hasHistory && !m.downloading)

	if m.focus == focusHistory && !hasHistory {
		m.focus = focusForm
		m.form.Focus()
	}

	if m.focus == focusForm {
		m.router.Mount(m.sets[setForm])
	} else {
		m.router.Unmount(setForm)
	}

	if m.focus == focusHistory && hasHistory {
		m.router.Mount(m.sets[setHistory])
	} else {
		m.router.Unmount(setHistory)
	}
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.ready = true
	m.help.Width = width
	m.form.SetWidth(width - 4)
	m.history.SetSize(width-4, height-reservedRows)
	m.history.Refresh(m.orch.Snapshot())
}

func (m Model) View() string {
	if !m.ready {
		return "初始化中..."
	}

	snap := m.orch.Snapshot()
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Visual Whispers"))
	if Version != "" {
		sb.WriteString(dimStyle.Render(" " + Version))
	}
	sb.WriteString(dimStyle.Render("  session " + shortID(snap.SessionID)))
	sb.WriteString("\n")

	formPane, historyPane := paneStyle, paneStyle
	if m.focus == focusForm {
		formPane = focusedPaneStyle
	} else {
		historyPane = focusedPaneStyle
	}
	sb.WriteString(formPane.Width(m.width - 2).Render(m.form.View(snap.InFlight)))
	sb.WriteString("\n")

	if indicator := Indicator(snap); indicator != "" {
		sb.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Center, labelStyle.Render(indicator)))
		sb.WriteString("\n")
	}
	sb.WriteString(historyPane.Width(m.width - 2).Render(m.history.View()))
	sb.WriteString("\n")

	if snap.InFlight {
		sb.WriteString(m.spinner.View())
		sb.WriteString(" ")
		sb.WriteString(loadingText)
		sb.WriteString("\n")
	}
	if m.errMsg != "" {
		sb.WriteString(errorStyle.Render("✗ " + m.errMsg))
		sb.WriteString("\n")
	}
	if m.notice != "" {
		style := okStyle
		if m.noticeErr {
			style = errorStyle
		}
		sb.WriteString(style.Render(m.notice))
		sb.WriteString("\n")
	}

	sb.WriteString(m.help.View(m.router))
	return sb.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
