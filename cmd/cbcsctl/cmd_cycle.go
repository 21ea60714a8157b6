package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// ── status ──

func newStatusCmd() *cobra.Command {
	var cycleID string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "查看轮次详情（COMPLETE 后含分配结果）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			cycle, err := a.svc.Cycle.Get(cmd.Context(), cycleID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cycle)
		},
	}
	cmd.Flags().StringVar(&cycleID, "cycle", "", "轮次ID")
	_ = cmd.MarkFlagRequired("cycle")
	return cmd
}

// ── finalize ──

func newFinalizeCmd() *cobra.Command {
	var cycleID string
	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "手动触发分配并等待完成（幂等）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.svc.Coordinator.TriggerManually(cmd.Context(), cycleID)
			if err != nil {
				return err
			}
			if !result.Triggered {
				fmt.Fprintf(cmd.OutOrStdout(), "未触发：轮次当前状态为 %s\n", result.State)
				return nil
			}

			if err := waitDispatcher(cmd.Context(), a); err != nil {
				return err
			}
			return printState(cmd, a, cycleID)
		},
	}
	cmd.Flags().StringVar(&cycleID, "cycle", "", "轮次ID")
	_ = cmd.MarkFlagRequired("cycle")
	return cmd
}

// ── recover ──

func newRecoverCmd() *cobra.Command {
	var (
		cycleID    string
		stuckAfter time.Duration
	)
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "重新执行停留在 FINALIZING 的轮次",
		Long:  "指定 --cycle 时直接对该轮次执行一次分配；否则按 --stuck-after 巡检一轮。",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			if cycleID != "" {
				if err := a.svc.Runner.Finalize(cmd.Context(), cycleID); err != nil {
					return err
				}
				return printState(cmd, a, cycleID)
			}

			if stuckAfter <= 0 {
				stuckAfter = a.cfg.Allocation.StuckAfter
			}
			wd := a.svc.Watchdog.WithStuckAfter(stuckAfter)
			n, err := wd.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			if err := waitDispatcher(cmd.Context(), a); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已重新派发 %d 个轮次\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&cycleID, "cycle", "", "轮次ID（留空则巡检全部）")
	cmd.Flags().DurationVar(&stuckAfter, "stuck-after", 0, "FINALIZING 超过该时长视为卡死（默认取配置）")
	return cmd
}

func waitDispatcher(ctx context.Context, a *app) error {
	waitCtx, cancel := context.WithTimeout(ctx, a.cfg.Allocation.FinalizeTimeout+10*time.Second)
	defer cancel()
	return a.svc.Dispatcher.Wait(waitCtx)
}

func printState(cmd *cobra.Command, a *app, cycleID string) error {
	cycle, err := a.svc.Cycle.Get(cmd.Context(), cycleID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "轮次 %s 状态: %s（第 %d 次运行）\n", cycle.ID, cycle.State, cycle.RunCount)
	if cycle.LastError != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "last_error: %s\n", cycle.LastError)
	}
	return nil
}
