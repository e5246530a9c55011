package utils

import (
	"os"
	"path/filepath"
)

const appDirName = "visual-whispers"

// GetConfigDir 获取跨平台的配置目录
// Windows: %APPDATA%/visual-whispers
// Linux/macOS: $XDG_CONFIG_HOME/visual-whispers 或 ~/.config/visual-whispers
func GetConfigDir() (string, error) {
	// 自定义配置目录优先
	if configHome := os.Getenv("VISUAL_WHISPERS_CONFIG_HOME"); configHome != "" {
		return configHome, nil
	}

	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, appDirName), nil
	}

	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appDirName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", appDirName), nil
}

// GetConfigPathForDisplay 获取用于显示的配置路径字符串
func GetConfigPathForDisplay() string {
	dir, err := GetConfigDir()
	if err != nil {
		return "~/.config/" + appDirName + "/config.yaml"
	}
	return filepath.Join(dir, "config.yaml")
}

// DefaultLogPath TUI 占用 stdout，日志默认写到配置目录下
func DefaultLogPath() string {
	dir, err := GetConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "whispers.log")
	}
	return filepath.Join(dir, "whispers.log")
}
