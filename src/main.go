package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alvinn6o/450-Project-2-Team-2/src/config"
	"github.com/alvinn6o/450-Project-2-Team-2/src/datasource/file"
	"github.com/alvinn6o/450-Project-2-Team-2/src/processor"
	"github.com/alvinn6o/450-Project-2-Team-2/src/storage"
	"github.com/spf13/cobra"
)

var (
	configPath string
	dataPath   string
)

var rootCmd = &cobra.Command{
	Use:   "flightdelays",
	Short: "航班延误原因分析",
	Long: `航班延误原因分析

读取航班准点率数据(csv/xlsx)，清洗后按年份、航司、州、延误原因筛选，
输出散点图数据和延误原因饼图汇总。

子命令:
  - serve: 启动 REST 接口和实时日志
  - export: 导出 xlsx 和 png 图表
  - options: 打印可选的筛选值
  - fetch-mail: 从邮箱收取新的数据文件
  - reopen-logs: 通知运行中的服务重新打开日志文件`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.json", "配置文件(json/yaml)，不存在时使用默认值")
	rootCmd.PersistentFlags().StringVarP(&dataPath, "data", "d", "", "数据文件，覆盖配置中的 data_file")
}

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}

// app 各子命令共用的配置和日志
type app struct {
	cfg    *config.Config
	logger *storage.Logger
}

// newApp 加载配置并初始化日志系统
func newApp() (*app, error) {
	folder, name := filepath.Split(configPath)
	cfg, err := config.LoadConfig(folder, name)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if dataPath != "" {
		cfg.DataFile = dataPath
	}

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	if cfg.LogConsole {
		logger.SetEcho(os.Stderr)
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) Close() {
	_ = a.logger.Close()
}

// loadContext 读取数据文件并构建查询上下文
func (a *app) loadContext(opts ...processor.Option) (*processor.Context, error) {
	raw, err := file.LoadFile(a.cfg.DataFile, file.Config{
		Delimiter: a.cfg.DelimiterRune(),
		SheetName: a.cfg.SheetName,
	})
	if err != nil {
		return nil, err
	}

	pc, err := processor.NewContext(raw, opts...)
	if err != nil {
		return nil, err
	}

	report := pc.Report()
	a.logger.Info(fmt.Sprintf("加载 %s 完成: %s", a.cfg.DataFile, report))
	if report.RowsDropped > 0 {
		a.logger.Warning(fmt.Sprintf("%d 行缺少关键字段被丢弃", report.RowsDropped))
	}
	return pc, nil
}
