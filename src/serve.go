package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alvinn6o/450-Project-2-Team-2/src/datapush"
	"github.com/alvinn6o/450-Project-2-Team-2/src/datasource/file"
	"github.com/alvinn6o/450-Project-2-Team-2/src/processor"
	"github.com/alvinn6o/450-Project-2-Team-2/src/storage"
	"github.com/alvinn6o/450-Project-2-Team-2/src/webui"
	"github.com/robfig/cron"
	"github.com/spf13/cobra"
)

var (
	serveAddr   string
	serveReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 REST 接口",
	Long: `启动 REST 接口和实时日志页面

  GET  /api/v1/options           筛选可选值
  GET  /api/v1/view              查询(year/carrier/state/cause 可重复，mode=all|dominant)
  POST /api/v1/view              查询(JSON)
  GET  /api/v1/chart/scatter.png 散点图
  GET  /api/v1/chart/pie.png     饼图
  GET  /logs                     实时日志

配置了 export.schedule 时按计划导出全量快照，配置了 mail.outbox 时发送导出结果；
配置了 mail.inbox 时按 mail.inbox.interval 检查邮箱中的新数据。`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "监听地址，覆盖配置中的 server.addr")
	serveCmd.Flags().BoolVar(&serveReload, "reload", true, "数据文件变化时重新加载")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	logger := a.logger
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	pc, err := a.loadContext()
	if err != nil {
		logger.Fatal("加载数据失败: " + err.Error())
		return err
	}

	server := webui.NewServer(webui.Options{
		Addr:           cfg.Server.Addr,
		ReadTimeout:    cfg.Server.ReadTimeout.Std(),
		WriteTimeout:   cfg.Server.WriteTimeout.Std(),
		RequestTimeout: cfg.Server.RequestTimeout.Std(),
		ChartWidth:     cfg.Export.Width,
		ChartHeight:    cfg.Export.Height,
	}, pc, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 设置定时任务
	c := cron.New()
	if err := scheduleJobs(c, a, server, serveReload); err != nil {
		logger.Error("创建定时任务失败: " + err.Error())
		return err // 重要错误应该终止程序
	}
	c.Start()
	defer c.Stop()

	if serveReload {
		if err := watchData(ctx, a, func(next *processor.Context) {
			server.SetContext(next)
		}); err != nil {
			logger.Warning("无法监听数据文件变化: " + err.Error())
		}
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("服务已启动 %s (pid %d)，按Ctrl+C退出", cfg.Server.Addr, os.Getpid()))
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if err := waitForShutdown(logger, errCh); err != nil {
		return err
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("关闭服务失败: " + err.Error())
		return err
	}
	logger.Info("服务已关闭")
	return nil
}

// scheduleJobs 日志轮转检查，以及按配置的定时导出和邮箱检查
// watching 为 false 时收到新数据后直接重新加载
func scheduleJobs(c *cron.Cron, a *app, server *webui.Server, watching bool) error {
	cfg := a.cfg
	logger := a.logger

	err := c.AddFunc("@every 1m", func() {
		rotated, err := logger.CheckRotate(cfg.LogMaxSize)
		if err != nil {
			logger.Error("日志轮转失败: " + err.Error())
			return
		}
		if rotated {
			logger.Info("日志已轮转")
		}
	})
	if err != nil {
		return err
	}

	if m := newMailbox(cfg); m != nil {
		spec := fmt.Sprintf("@every %s", cfg.Mail.Inbox.Interval.Std())
		err := c.AddFunc(spec, func() {
			saved, err := m.check(a)
			if err != nil {
				logger.Error("检查邮箱失败: " + err.Error())
				return
			}
			if !saved || watching {
				return
			}
			pc, err := a.loadContext()
			if err != nil {
				logger.Error("重新加载失败，继续使用旧数据: " + err.Error())
				return
			}
			server.SetContext(pc)
		})
		if err != nil {
			return err
		}
		logger.Info(fmt.Sprintf("邮箱检查已启动(检查间隔: %s)", cfg.Mail.Inbox.Interval.Std()))
	}

	if cfg.Export.Schedule == "" {
		return nil
	}

	exporter := datapush.NewExporter(cfg.Export.Dir, cfg.Export.Charts, cfg.Export.Width, cfg.Export.Height)
	pusher := newMailPusher(cfg)
	return c.AddFunc(cfg.Export.Schedule, func() {
		logger.Info(fmt.Sprintf("开始定时导出(%s)...", cfg.Export.Schedule))

		t1 := time.Now()
		pc := server.Context()
		res, err := pc.Run(context.Background(), processor.FilterSpec{}, processor.AllCauses)
		if err != nil {
			logger.Error("定时导出查询失败: " + err.Error())
			return
		}
		art, err := exporter.Export(res)
		if err != nil {
			logger.Error("定时导出失败: " + err.Error())
			return
		}
		logger.Info(fmt.Sprintf("导出 %s 完成，耗时 %v", art.Workbook, time.Since(t1)))

		if pusher.Enabled() {
			if err := pusher.Push(res, art); err != nil {
				logger.Error(err.Error())
				return
			}
			logger.Info(fmt.Sprintf("导出结果已发送给 %v", pusher.To))
		}
	})
}

// watchData 数据文件更新后重新加载，加载失败时保留旧数据
func watchData(ctx context.Context, a *app, apply func(*processor.Context), opts ...processor.Option) error {
	monitor, err := file.NewFileMonitor(a.cfg.DataFile)
	if err != nil {
		return err
	}

	go func() {
		err := monitor.Watch(ctx, func(path string) {
			a.logger.Info("数据文件已更新: " + path)
			pc, err := a.loadContext(opts...)
			if err != nil {
				a.logger.Error("重新加载失败，继续使用旧数据: " + err.Error())
				return
			}
			apply(pc)
		})
		if err != nil {
			a.logger.Error("File monitoring error: " + err.Error())
		}
	}()
	return nil
}

// waitForShutdown SIGHUP 重新打开日志文件，SIGINT/SIGTERM 返回
func waitForShutdown(logger *storage.Logger, errCh <-chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for {
		select {
		case err, ok := <-errCh:
			if ok && err != nil {
				logger.Error("服务异常退出: " + err.Error())
				return err
			}
			return nil
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGHUP:
				// 外部轮转(改名)后重新打开同名文件
				if err := logger.Reopen(logger.Filename()); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to reopen log: %v\n", err)
					continue
				}
				logger.Info("Received SIGHUP, log reopened")
			default:
				logger.Info("Received signal: " + sig.String() + ", shutting down...")
				return nil
			}
		}
	}
}
