package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
	Flush()
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

// MetricsTypeConfig declares a metric and the label names every emission must carry.
type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

var (
	Metric_Incr_HttpRequest           = "rpc.http.request"
	Metric_Incr_AccrualRun            = "accrual.run"
	Metric_Incr_AccrualRecorded       = "accrual.recorded"
	Metric_Incr_AccrualSkipped        = "accrual.skipped"
	Metric_Incr_AccrualFailed         = "accrual.failed"
	Metric_Incr_AccrualLockContended  = "accrual.lock.contended"
	Metric_Incr_ClaimSettled          = "claims.settled"
	Metric_Incr_ClaimRejected         = "claims.rejected"
	Metric_Incr_DistributionCompleted = "distribution.completed"
	Metric_Incr_PriceLookupFailed     = "pricing.lookup.failed"

	Metric_Gauge_AccrualContributions = "accrual.contributions"
	Metric_Gauge_DistributionDust     = "distribution.dust"

	Metric_Timing_HttpDuration         = "rpc.http.duration"
	Metric_Timing_AccrualDuration      = "accrual.duration"
	Metric_Timing_DistributionDuration = "distribution.duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		{Name: Metric_Incr_HttpRequest, Labels: []string{"method", "pattern", "status_code"}},
		{Name: Metric_Incr_AccrualRun, Labels: []string{"trigger", "hasError"}},
		{Name: Metric_Incr_AccrualRecorded, Labels: []string{"chain"}},
		{Name: Metric_Incr_AccrualSkipped, Labels: []string{"chain", "reason"}},
		{Name: Metric_Incr_AccrualFailed, Labels: []string{"chain"}},
		{Name: Metric_Incr_AccrualLockContended, Labels: []string{}},
		{Name: Metric_Incr_ClaimSettled, Labels: []string{"source"}},
		{Name: Metric_Incr_ClaimRejected, Labels: []string{"reason"}},
		{Name: Metric_Incr_DistributionCompleted, Labels: []string{"chain"}},
		{Name: Metric_Incr_PriceLookupFailed, Labels: []string{"asset"}},
	},
	MetricsType_Gauge: {
		{Name: Metric_Gauge_AccrualContributions, Labels: []string{}},
		{Name: Metric_Gauge_DistributionDust, Labels: []string{"chain"}},
	},
	MetricsType_Timing: {
		{Name: Metric_Timing_HttpDuration, Labels: []string{"method", "pattern", "status_code"}},
		{Name: Metric_Timing_AccrualDuration, Labels: []string{"trigger", "hasError"}},
		{Name: Metric_Timing_DistributionDuration, Labels: []string{"chain"}},
	},
}
