package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubmissionsTotal 志愿提交次数，按结果分类
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cbcs_submissions_total",
		Help: "Preference submissions by result",
	}, []string{"result"}) // ok | duplicate | invalid | closed | error

	// TriggersTotal 状态迁移 OPEN→FINALIZING 的尝试次数
	TriggersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cbcs_finalize_triggers_total",
		Help: "Finalize trigger attempts by source and outcome",
	}, []string{"source", "outcome"}) // source: submit | manual | watchdog; outcome: won | skipped | error

	// FinalizeRunsTotal 分配执行次数
	FinalizeRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cbcs_finalize_runs_total",
		Help: "Allocation runs by result",
	}, []string{"result"}) // complete | stale | failed

	// FinalizeDuration 单次分配事务耗时
	FinalizeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cbcs_finalize_duration_seconds",
		Help:    "Allocation run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	})

	// AssignmentsTotal 写入的分配结果，按类型分类
	AssignmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cbcs_assignments_total",
		Help: "Final assignments written by kind",
	}, []string{"kind"}) // preferred | fallback | overfilled | unallocated

	// InflightRuns 当前进程内正在执行的分配任务数
	InflightRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cbcs_finalize_inflight",
		Help: "Allocation runs currently executing in this process",
	})
)
