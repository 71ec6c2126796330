package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/alvinn6o/450-Project-2-Team-2/src/datapush"
	"github.com/alvinn6o/450-Project-2-Team-2/src/processor"
	"github.com/spf13/cobra"
)

var (
	exportYears    []string
	exportCarriers []string
	exportStates   []string
	exportCauses   []string
	exportMode     string
	exportDir      string
	exportSeed     uint64
	exportNoCharts bool
	exportWatch    bool
	exportMail     bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "导出筛选结果",
	Long: `按筛选条件运行一次分析，写出 flight_delays_<时间>_<runid>.xlsx
(Rows/Pie 两个工作表)以及散点图和饼图 png。

筛选参数可重复，不指定或指定 All 表示不限制。
--watch 在数据文件变化时重新导出，直到 Ctrl+C。
--mail 按 mail.outbox 配置把导出文件发给收件人。`,
	RunE: runExport,
}

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "打印可选的筛选值(JSON)",
	RunE:  runOptions,
}

func init() {
	f := exportCmd.Flags()
	// 航司名称中可能有逗号，使用 StringArray 不按逗号拆分
	f.StringArrayVar(&exportYears, "year", nil, "年份，可重复")
	f.StringArrayVar(&exportCarriers, "carrier", nil, "航司名称，可重复")
	f.StringArrayVar(&exportStates, "state", nil, "州代码，可重复")
	f.StringArrayVar(&exportCauses, "cause", nil, "延误原因列名(carrier_ct 等)，可重复")
	f.StringVar(&exportMode, "mode", processor.ModeAll, "视图模式 all|dominant")
	f.StringVarP(&exportDir, "out", "o", "", "导出目录，覆盖配置中的 export.dir")
	f.Uint64Var(&exportSeed, "seed", 0, "抖动随机种子，0 表示随机")
	f.BoolVar(&exportNoCharts, "no-charts", false, "不导出 png 图表")
	f.BoolVarP(&exportWatch, "watch", "w", false, "数据文件变化时重新导出")
	f.BoolVar(&exportMail, "mail", false, "通过邮件发送导出结果")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(optionsCmd)
}

func exportSpec() processor.FilterSpec {
	return processor.FilterSpec{
		Years:    processor.ParseSelection(exportYears),
		Carriers: processor.ParseSelection(exportCarriers),
		States:   processor.ParseSelection(exportStates),
		Causes:   processor.ParseSelection(exportCauses),
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	mode, err := processor.ParseViewMode(exportMode)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	if exportDir != "" {
		cfg.Export.Dir = exportDir
	}
	charts := cfg.Export.Charts && !exportNoCharts
	exporter := datapush.NewExporter(cfg.Export.Dir, charts, cfg.Export.Width, cfg.Export.Height)
	pusher := newMailPusher(cfg)
	if exportMail && !pusher.Enabled() {
		return errors.New("--mail 需要配置 mail.outbox.server 和 mail.outbox.to")
	}

	var opts []processor.Option
	if exportSeed != 0 {
		opts = append(opts, processor.WithJitterer(processor.NewSeededJitterer(exportSeed)))
	}

	spec := exportSpec()
	export := func(pc *processor.Context) error {
		res, err := pc.Run(cmd.Context(), spec, mode)
		if err != nil {
			return err
		}
		art, err := exporter.Export(res)
		if err != nil {
			return err
		}
		a.logger.Info(fmt.Sprintf("%s: %d 行, 饼图状态 %s", res.Title(), res.Rows.Nrow(), res.Pie.Status))
		if exportMail {
			if err := pusher.Push(res, art); err != nil {
				return err
			}
			a.logger.Info(fmt.Sprintf("导出结果已发送给 %v", pusher.To))
		}
		return printJSON(cmd, art)
	}

	pc, err := a.loadContext(opts...)
	if err != nil {
		return err
	}
	if err := export(pc); err != nil {
		return err
	}
	if !exportWatch {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.Info("监听数据文件变化: " + cfg.DataFile)
	err = watchData(ctx, a, func(next *processor.Context) {
		if err := export(next); err != nil {
			a.logger.Error("重新导出失败: " + err.Error())
		}
	}, opts...)
	if err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func runOptions(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	pc, err := a.loadContext()
	if err != nil {
		return err
	}
	return printJSON(cmd, pc.Options())
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
