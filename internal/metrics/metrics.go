// Package metrics 提供 Prometheus 监控指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "codedript"

// HTTP 请求指标
var (
	// HTTPRequestsTotal HTTP 请求总数
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration HTTP 请求耗时
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP 请求耗时(秒)",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
)

// 对账指标
var (
	// TransactionsRecorded 入库链上交易总数
	TransactionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_recorded_total",
			Help:      "入库链上交易总数",
		},
		[]string{"type", "network"},
	)

	// ReconciliationFailures 对账投影失败数
	ReconciliationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliation_failures_total",
			Help:      "对账投影失败数",
		},
		[]string{"stage"},
	)

	// AgreementTransitions 协议状态流转数
	AgreementTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agreement_transitions_total",
			Help:      "协议状态流转数",
		},
		[]string{"to"},
	)

	// OracleRequests 预言机调用数
	OracleRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_requests_total",
			Help:      "预言机调用数",
		},
		[]string{"network", "result"},
	)
)

// RecordHTTPRequest 记录 HTTP 请求指标
func RecordHTTPRequest(method, path, status string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(durationSeconds)
}

// RecordTransaction 记录一笔入库交易
func RecordTransaction(txType, network string) {
	TransactionsRecorded.WithLabelValues(txType, network).Inc()
}

// RecordReconciliationFailure 记录一次投影失败
func RecordReconciliationFailure(stage string) {
	ReconciliationFailures.WithLabelValues(stage).Inc()
}

// RecordTransition 记录一次状态流转
func RecordTransition(to string) {
	AgreementTransitions.WithLabelValues(to).Inc()
}

// RecordOracleRequest 记录一次预言机调用
func RecordOracleRequest(network, result string) {
	OracleRequests.WithLabelValues(network, result).Inc()
}
