package tui

import (
	"github.com/ImanolGo/Visual-Whispers/internal/chain"
)

// generationDoneMsg 一次生成请求结束，交给编排器判断是否过期
type generationDoneMsg struct {
	Pending chain.Pending
	Result  chain.Result
	Err     error
}

// downloadDoneMsg 导出文件已保存或失败
type downloadDoneMsg struct {
	Path string
	Err  error
}

// settingsSavedMsg /save 写入配置文件的结果
type settingsSavedMsg struct {
	Path string
	Err  error
}
