// Package metrics 定义部署引擎的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// 监控任务
	monitorsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "galera_cd",
			Subsystem: "monitor",
			Name:      "active",
			Help:      "Number of deployments currently tracked by the build monitor",
		},
	)

	monitorPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "galera_cd",
			Subsystem: "monitor",
			Name:      "polls_total",
			Help:      "Total number of monitor polls by outcome",
		},
		[]string{"outcome"},
	)

	// 状态流转
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "galera_cd",
			Subsystem: "deployment",
			Name:      "transitions_total",
			Help:      "Total number of deployment status transitions",
		},
		[]string{"from", "to"},
	)

	reconcileItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "galera_cd",
			Subsystem: "reconcile",
			Name:      "items_total",
			Help:      "Deployments examined by reconciliation sweeps by result",
		},
		[]string{"result"},
	)

	// 构建执行器调用
	executorCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "galera_cd",
			Subsystem: "executor",
			Name:      "calls_total",
			Help:      "Total number of build executor calls by operation and result",
		},
		[]string{"operation", "result"},
	)

	executorLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "galera_cd",
			Subsystem: "executor",
			Name:      "latency_seconds",
			Help:      "Latency of build executor calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 9), // 50ms to ~12s
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(
		monitorsActive,
		monitorPollsTotal,
		transitionsTotal,
		reconcileItemsTotal,
		executorCallsTotal,
		executorLatency,
	)
}

// MonitorStarted 监控任务启动
func MonitorStarted() { monitorsActive.Inc() }

// MonitorStopped 监控任务退出
func MonitorStopped() { monitorsActive.Dec() }

// RecordPoll 记录一次轮询结果: changed / unchanged / transient
func RecordPoll(outcome string) {
	monitorPollsTotal.WithLabelValues(outcome).Inc()
}

// RecordTransition 记录一次部署状态变更
func RecordTransition(from, to string) {
	transitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordReconcile 记录对账结果: fixed / unchanged / error
func RecordReconcile(result string) {
	reconcileItemsTotal.WithLabelValues(result).Inc()
}

// RecordExecutorCall 记录执行器调用
func RecordExecutorCall(operation, result string, latency float64) {
	executorCallsTotal.WithLabelValues(operation, result).Inc()
	executorLatency.WithLabelValues(operation).Observe(latency)
}
