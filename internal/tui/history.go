package tui

import (
	"fmt"
	"strings"

	"github.com/ImanolGo/Visual-Whispers/internal/chain"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
)

const loadingText = "Generating next image..."

// HistoryView 显示当前选中的记录
type HistoryView struct {
	viewport viewport.Model
	style    string
	width    int

	renderer      *glamour.TermRenderer
	rendererWidth int
	// 记录创建后不变，按会话和序号缓存渲染结果
	cache map[string]string
}

// NewHistoryView style 为空时自动检测终端背景
func NewHistoryView(style string) HistoryView {
	return HistoryView{
		viewport: viewport.New(80, 10),
		style:    style,
		width:    80,
		cache:    make(map[string]string),
	}
}

func (h *HistoryView) SetSize(width, height int) {
	if height < 3 {
		height = 3
	}
	h.viewport.Width = width
	h.viewport.Height = height
	if width != h.width {
		h.width = width
		h.cache = make(map[string]string)
	}
}

func (h *HistoryView) ScrollUp() {
	h.viewport.ScrollUp(1)
}

func (h *HistoryView) ScrollDown() {
	h.viewport.ScrollDown(1)
}

// Refresh 按快照重新生成内容
func (h *HistoryView) Refresh(snap chain.Snapshot) {
	record, ok := snap.Selected()
	if !ok {
		h.viewport.SetContent(dimStyle.Render("还没有图片。输入一段描述，按 Enter 开始传话。"))
		h.viewport.GotoTop()
		return
	}
	h.viewport.SetContent(h.renderRecord(snap.SessionID, record))
	h.viewport.GotoTop()
}

func (h *HistoryView) renderRecord(sessionID string, r chain.WhisperRecord) string {
	cacheKey := fmt.Sprintf("%s/%d", sessionID, r.Iteration)
	if out, ok := h.cache[cacheKey]; ok {
		return out
	}

	var sb strings.Builder
	sb.WriteString(labelStyle.Render(fmt.Sprintf("Iteration %d", r.Iteration)))
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("Image: "))
	sb.WriteString(r.ImageURL)
	sb.WriteString("\n")
	sb.WriteString(h.renderMarkdown(r.Description))
	sb.WriteString(dimStyle.Render("Next seed: "))
	sb.WriteString(r.Prompt)

	out := sb.String()
	h.cache[cacheKey] = out
	return out
}

// renderMarkdown 渲染失败时退回原文
func (h *HistoryView) renderMarkdown(text string) string {
	renderer := h.getRenderer()
	if renderer == nil {
		return text + "\n"
	}
	out, err := renderer.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}

func (h *HistoryView) getRenderer() *glamour.TermRenderer {
	wrap := h.width - 4
	if wrap < 20 {
		wrap = 20
	}
	if h.renderer != nil && h.rendererWidth == wrap {
		return h.renderer
	}

	styleOpt := glamour.WithAutoStyle()
	if h.style != "" {
		styleOpt = glamour.WithStandardStyle(h.style)
	}
	renderer, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(wrap))
	if err != nil {
		return nil
	}
	h.renderer = renderer
	h.rendererWidth = wrap
	return renderer
}

// Indicator 轮播位置，例如 ‹ 2/5 ›
func Indicator(snap chain.Snapshot) string {
	n := len(snap.History)
	if n == 0 {
		return ""
	}
	left, right := "‹", "›"
	if snap.SelectedIndex == 0 {
		left = " "
	}
	if snap.SelectedIndex == n-1 {
		right = " "
	}
	return fmt.Sprintf("%s %d/%d %s", left, snap.SelectedIndex+1, n, right)
}

func (h HistoryView) View() string {
	return h.viewport.View()
}
