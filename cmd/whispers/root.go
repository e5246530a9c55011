package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ImanolGo/Visual-Whispers/internal/chain"
	"github.com/ImanolGo/Visual-Whispers/internal/runner"
	"github.com/ImanolGo/Visual-Whispers/internal/tui"
	"github.com/ImanolGo/Visual-Whispers/internal/utils"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "whispers",
		Short: "Visual Whispers - AI 传话游戏",
		Long: `Visual Whispers 把一段描述交给图像模型，再把模型对图像的描述
作为下一步的输入，一步步观察画面如何走样。

不带子命令时启动交互式界面。`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(flags)
		},
	}
	root.SetVersionTemplate("Visual Whispers {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "配置文件路径（默认 "+utils.GetConfigPathForDisplay()+"）")
	pf.StringVar(&flags.apiURL, "api-url", "", "生成服务地址，覆盖配置")
	pf.StringVar(&flags.logLevel, "log-level", "", "日志级别: debug, info, warn, error")

	root.AddCommand(newRunCmd(flags), newVersionCmd())
	return root
}

func runTUI(flags *globalFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	// 检查是否在交互式终端中
	if !isTerminal() {
		fmt.Println("Visual Whispers 运行在非交互式模式")
		fmt.Println("请在交互式终端中运行以获得完整界面，或使用 `whispers run` 无界面生成")
		fmt.Printf("当前生成服务: %s\n", cfg.APIURL)
		return nil
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	tui.Version = Version
	model := tui.NewModel(tui.Options{
		Orchestrator: a.orch,
		Downloader:   a.client,
		Settings:     settingsFile{path: flags.configPath},
		Perspective:  cfg.Perspective,
		Temperature:  cfg.Temperature,
		ExportDir:    cfg.ExportDir,
		Logger:       a.logger.Named("tui"),
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		a.logger.Error("界面异常退出", zap.Error(err))
		return fmt.Errorf("程序运行错误: %w", err)
	}
	return nil
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	opts := runner.Options{}
	var exportDir string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "无界面运行一条链并输出每一步",
		Example: `  whispers run --prompt "a lighthouse in a storm" --hops 5
  whispers run -p "a cat on a sofa" --perspective "as a child" --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("perspective") {
				opts.Perspective = cfg.Perspective
			}
			if !cmd.Flags().Changed("temperature") {
				opts.Temperature = cfg.Temperature
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			records, runErr := runner.New(a.orch, cmd.OutOrStdout(), a.logger.Named("runner")).Run(ctx, opts)
			return exportAfterRun(ctx, a.client, records, exportDir, runErr, cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Prompt, "prompt", "p", "", "初始描述（必填）")
	f.StringVar(&opts.Perspective, "perspective", "", "描述图像时采用的视角")
	f.Float64VarP(&opts.Temperature, "temperature", "t", 0, "0.0 到 1.0，越高越发散")
	f.IntVarP(&opts.Hops, "hops", "n", 3, "链的总步数")
	f.BoolVar(&opts.JSON, "json", false, "每一步输出一行 JSON")
	f.StringVar(&exportDir, "export", "", "完成后把整条链导出到该目录")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

// exportAfterRun 运行结束后导出已生成的记录。被中断时不导出；导出失败不会覆盖运行错误
func exportAfterRun(ctx context.Context, d tui.Downloader, records []chain.WhisperRecord, dir string, runErr error, out io.Writer) error {
	if dir == "" || len(records) == 0 {
		return runErr
	}
	if ctx.Err() != nil {
		fmt.Fprintln(out, "已中断，跳过导出")
		return runErr
	}

	path, err := exportChain(ctx, d, records, dir)
	if err != nil {
		return errors.Join(runErr, err)
	}
	fmt.Fprintf(out, "已导出: %s\n", path)
	return runErr
}

func exportChain(ctx context.Context, d tui.Downloader, records []chain.WhisperRecord, dir string) (string, error) {
	artifact, err := d.Download(ctx, chain.ExportRecords(records))
	if err != nil {
		return "", fmt.Errorf("导出失败: %w", err)
	}
	return utils.WriteArtifact(dir, artifact.Filename, artifact.Data)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Visual Whispers %s\n", Version)
		},
	}
}
