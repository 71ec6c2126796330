package main

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
)

var reopenPID int

// reopenCmd 供 logrotate 之类的工具在改名日志文件后调用
var reopenCmd = &cobra.Command{
	Use:   "reopen-logs",
	Short: "通知运行中的 serve 重新打开日志文件(SIGHUP)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if reopenPID <= 0 {
			return fmt.Errorf("需要指定 --pid")
		}
		// 向 serve 进程发送 SIGHUP
		if err := syscall.Kill(reopenPID, syscall.SIGHUP); err != nil {
			return fmt.Errorf("Failed to send SIGHUP: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "已向进程 %d 发送 SIGHUP\n", reopenPID)
		return nil
	},
}

func init() {
	reopenCmd.Flags().IntVar(&reopenPID, "pid", 0, "serve 进程号(见启动日志)")
	rootCmd.AddCommand(reopenCmd)
}
