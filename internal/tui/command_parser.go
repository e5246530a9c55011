package tui

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// CommandType 命令类型
type CommandType int

const (
	CommandTypeUnknown CommandType = iota
	CommandTypeReset
	CommandTypeDownload
	CommandTypeGoto
	CommandTypeTemp
	CommandTypeQuit
	CommandTypeHelp
	CommandTypeSave
)

// Command 解析后的命令
type Command struct {
	Type CommandType
	Raw  string
	// Path /download 的目标目录
	Path string
	// Index /goto 的序号，从 1 开始
	Index int
	// Temperature /temp 的值
	Temperature float64
	// Err 参数不合法时的提示
	Err string
}

// CommandParser 斜杠命令解析器
type CommandParser struct {
	resetPattern    *regexp.Regexp
	downloadPattern *regexp.Regexp
	gotoPattern     *regexp.Regexp
	tempPattern     *regexp.Regexp
	quitPattern     *regexp.Regexp
	helpPattern     *regexp.Regexp
	savePattern     *regexp.Regexp
}

func NewCommandParser() *CommandParser {
	return &CommandParser{
		resetPattern:    regexp.MustCompile(`(?i)^/(reset|new)$`),
		downloadPattern: regexp.MustCompile(`(?i)^/(download|export)(?:\s+(.+))?$`),
		gotoPattern:     regexp.MustCompile(`(?i)^/goto(?:\s+(\S+))?$`),
		tempPattern:     regexp.MustCompile(`(?i)^/temp(?:erature)?(?:\s+(\S+))?$`),
		quitPattern:     regexp.MustCompile(`(?i)^/(quit|exit|q)$`),
		helpPattern:     regexp.MustCompile(`(?i)^/(help|\?)$`),
		savePattern:     regexp.MustCompile(`(?i)^/save$`),
	}
}

// Parse 不是斜杠开头时返回 nil
func (p *CommandParser) Parse(input string) *Command {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return nil
	}

	cmd := &Command{Type: CommandTypeUnknown, Raw: input}

	switch {
	case p.resetPattern.MatchString(input):
		cmd.Type = CommandTypeReset

	case p.quitPattern.MatchString(input):
		cmd.Type = CommandTypeQuit

	case p.helpPattern.MatchString(input):
		cmd.Type = CommandTypeHelp

	case p.savePattern.MatchString(input):
		cmd.Type = CommandTypeSave

	case p.downloadPattern.MatchString(input):
		matches := p.downloadPattern.FindStringSubmatch(input)
		cmd.Type = CommandTypeDownload
		cmd.Path = strings.TrimSpace(matches[2])

	case p.gotoPattern.MatchString(input):
		matches := p.gotoPattern.FindStringSubmatch(input)
		cmd.Type = CommandTypeGoto
		n, err := strconv.Atoi(matches[1])
		if err != nil || n < 1 {
			cmd.Err = "用法: /goto N（N 从 1 开始）"
			break
		}
		cmd.Index = n

	case p.tempPattern.MatchString(input):
		matches := p.tempPattern.FindStringSubmatch(input)
		cmd.Type = CommandTypeTemp
		t, err := strconv.ParseFloat(matches[1], 64)
		if err != nil || math.IsNaN(t) {
			cmd.Err = "用法: /temp 0.0-1.0"
			break
		}
		cmd.Temperature = t

	default:
		cmd.Err = "未知命令: " + input
	}

	return cmd
}

// FormatCommandType 格式化命令类型为字符串
func FormatCommandType(cmdType CommandType) string {
	switch cmdType {
	case CommandTypeReset:
		return "RESET"
	case CommandTypeDownload:
		return "DOWNLOAD"
	case CommandTypeGoto:
		return "GOTO"
	case CommandTypeTemp:
		return "TEMP"
	case CommandTypeQuit:
		return "QUIT"
	case CommandTypeHelp:
		return "HELP"
	case CommandTypeSave:
		return "SAVE"
	default:
		return "UNKNOWN"
	}
}

const commandHelp = "/reset 重新开始 · /download [目录] 导出 · /goto N 跳转 · /temp X 设置温度 · /save 保存视角和温度 · /quit 退出"
