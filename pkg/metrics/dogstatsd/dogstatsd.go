package dogstatsd

import (
	"fmt"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/Layr-Labs/rewards-engine/pkg/metrics/metricsTypes"
	"go.uber.org/zap"
)

type DogStatsdMetricsClient struct {
	client statsd.ClientInterface
	logger *zap.Logger
}

func NewDogStatsdMetricsClient(addr string, l *zap.Logger) (*DogStatsdMetricsClient, error) {
	client, err := statsd.New(addr, statsd.WithNamespace("rewards_engine."))
	if err != nil {
		return nil, fmt.Errorf("failed to create dogstatsd client: %w", err)
	}
	return NewDogStatsdMetricsClientWithStatsd(client, l), nil
}

func NewDogStatsdMetricsClientWithStatsd(client statsd.ClientInterface, l *zap.Logger) *DogStatsdMetricsClient {
	return &DogStatsdMetricsClient{
		client: client,
		logger: l,
	}
}

func formatTags(labels []metricsTypes.MetricsLabel) []string {
	tags := make([]string, 0, len(labels))
	for _, label := range labels {
		tags = append(tags, fmt.Sprintf("%s:%s", label.Name, label.Value))
	}
	return tags
}

func (dmc *DogStatsdMetricsClient) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	return dmc.client.Count(name, int64(value), formatTags(labels), 1)
}

func (dmc *DogStatsdMetricsClient) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	return dmc.client.Gauge(name, value, formatTags(labels), 1)
}

func (dmc *DogStatsdMetricsClient) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	return dmc.client.Timing(name, value, formatTags(labels), 1)
}

func (dmc *DogStatsdMetricsClient) Flush() {
	if err := dmc.client.Flush(); err != nil {
		dmc.logger.Sugar().Warnw("Failed to flush dogstatsd client", zap.Error(err))
	}
}
