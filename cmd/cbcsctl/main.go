// cbcsctl 选修课分配运维命令行：迁移、手动触发、卡死恢复、签发调试 Token
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const (
	exitSuccess = 0
	exitError   = 1
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cbcsctl",
		Short:         "CBCS 选修课分配运维工具",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径（默认 ./config/config.yaml）")

	root.AddCommand(
		newMigrateCmd(),
		newStatusCmd(),
		newFinalizeCmd(),
		newRecoverCmd(),
		newTokenCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(exitError)
	}
	os.Exit(exitSuccess)
}
