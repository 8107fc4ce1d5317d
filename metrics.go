package main

import (
	"sync"
	"time"

	"github.com/samber/lo"
)

// MetricsSnapshot pairs one completed step's readings from both twins with
// the derived improvement percentages. Positive reductions mean the adaptive
// twin waits less / queues less; positive increase means it moves more
// vehicles.
type MetricsSnapshot struct {
	Step                 int             `json:"step"`
	Adaptive             TwinStepMetrics `json:"adaptive"`
	Baseline             TwinStepMetrics `json:"baseline"`
	WaitingTimeReduction float64         `json:"waitingTimeReduction"`
	QueueLengthReduction float64         `json:"queueLengthReduction"`
	ThroughputIncrease   float64         `json:"throughputIncrease"`
}

// TwinSummary aggregates one twin's full time series.
type TwinSummary struct {
	AvgWaitingTime  float64 `json:"avgWaitingTime"`
	AvgQueueLength  float64 `json:"avgQueueLength"`
	MaxWaitingTime  float64 `json:"maxWaitingTime"`
	MaxQueueLength  float64 `json:"maxQueueLength"`
	TotalThroughput int     `json:"totalThroughput"`
}

// ComparisonSeries carries the aligned per-step series for both twins.
type ComparisonSeries struct {
	AdaptiveWaiting []float64 `json:"adaptiveWaiting"`
	BaselineWaiting []float64 `json:"baselineWaiting"`
	AdaptiveQueue   []float64 `json:"adaptiveQueue"`
	BaselineQueue   []float64 `json:"baselineQueue"`
}

// ComparisonReport is the full adaptive-vs-baseline analysis returned to
// callers. GeneratedAt lets a late-joining consumer compute how many steps it
// has missed and resume display from the correct offset.
type ComparisonReport struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	Steps       int              `json:"steps"`
	Adaptive    TwinSummary      `json:"adaptive"`
	Baseline    TwinSummary      `json:"baseline"`
	Improvement Improvement      `json:"improvement"`
	Series      ComparisonSeries `json:"timeSeries"`
}

// Improvement holds the percentage deltas of adaptive vs. baseline.
type Improvement struct {
	WaitingTimeReduction float64 `json:"waitingTimeReduction"`
	QueueLengthReduction float64 `json:"queueLengthReduction"`
	ThroughputIncrease   float64 `json:"throughputIncrease"`
}

// MetricsAggregator accumulates the per-step, per-twin time series. Appends
// come only from the step loop; reads may come from any number of external
// pollers.
type MetricsAggregator struct {
	mu       sync.RWMutex
	adaptive []TwinStepMetrics
	baseline []TwinStepMetrics
}

// NewMetricsAggregator creates an empty aggregator.
func NewMetricsAggregator() *MetricsAggregator {
	return &MetricsAggregator{}
}

// Record appends one completed step for both twins and returns the combined
// snapshot. An all-zero baseline yields a defined improvement of 0.
func (m *MetricsAggregator) Record(adaptive, baseline TwinStepMetrics) MetricsSnapshot {
	m.mu.Lock()
	m.adaptive = append(m.adaptive, adaptive)
	m.baseline = append(m.baseline, baseline)
	m.mu.Unlock()

	return MetricsSnapshot{
		Step:                 adaptive.Step,
		Adaptive:             adaptive,
		Baseline:             baseline,
		WaitingTimeReduction: reduction(baseline.AvgWaitingTime, adaptive.AvgWaitingTime),
		QueueLengthReduction: reduction(baseline.AvgQueueLength, adaptive.AvgQueueLength),
		ThroughputIncrease:   increase(float64(adaptive.Throughput), float64(baseline.Throughput)),
	}
}

// Steps returns the number of completed steps recorded so far.
func (m *MetricsAggregator) Steps() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.adaptive)
}

// Comparison assembles the full report: per-twin summaries, improvement
// percentages over the series means, and the aligned time series.
func (m *MetricsAggregator) Comparison() ComparisonReport {
	m.mu.RLock()
	adaptive := make([]TwinStepMetrics, len(m.adaptive))
	baseline := make([]TwinStepMetrics, len(m.baseline))
	copy(adaptive, m.adaptive)
	copy(baseline, m.baseline)
	m.mu.RUnlock()

	adaptiveSummary := summarize(adaptive)
	baselineSummary := summarize(baseline)

	return ComparisonReport{
		GeneratedAt: time.Now(),
		Steps:       len(adaptive),
		Adaptive:    adaptiveSummary,
		Baseline:    baselineSummary,
		Improvement: Improvement{
			WaitingTimeReduction: reduction(baselineSummary.AvgWaitingTime, adaptiveSummary.AvgWaitingTime),
			QueueLengthReduction: reduction(baselineSummary.AvgQueueLength, adaptiveSummary.AvgQueueLength),
			ThroughputIncrease:   increase(float64(adaptiveSummary.TotalThroughput), float64(baselineSummary.TotalThroughput)),
		},
		Series: ComparisonSeries{
			AdaptiveWaiting: lo.Map(adaptive, func(s TwinStepMetrics, _ int) float64 { return s.AvgWaitingTime }),
			BaselineWaiting: lo.Map(baseline, func(s TwinStepMetrics, _ int) float64 { return s.AvgWaitingTime }),
			AdaptiveQueue:   lo.Map(adaptive, func(s TwinStepMetrics, _ int) float64 { return s.AvgQueueLength }),
			BaselineQueue:   lo.Map(baseline, func(s TwinStepMetrics, _ int) float64 { return s.AvgQueueLength }),
		},
	}
}

func summarize(series []TwinStepMetrics) TwinSummary {
	if len(series) == 0 {
		return TwinSummary{}
	}
	waits := lo.Map(series, func(s TwinStepMetrics, _ int) float64 { return s.AvgWaitingTime })
	queues := lo.Map(series, func(s TwinStepMetrics, _ int) float64 { return s.AvgQueueLength })
	n := float64(len(series))
	return TwinSummary{
		AvgWaitingTime:  lo.Sum(waits) / n,
		AvgQueueLength:  lo.Sum(queues) / n,
		MaxWaitingTime:  lo.Max(waits),
		MaxQueueLength:  lo.Max(queues),
		TotalThroughput: lo.SumBy(series, func(s TwinStepMetrics) int { return s.Throughput }),
	}
}

// reduction computes (baseline - adaptive) / baseline * 100; positive means
// the adaptive twin is better. A zero baseline defines the improvement as 0.
func reduction(baseline, adaptive float64) float64 {
	if baseline == 0 {
		return 0
	}
	return (baseline - adaptive) / baseline * 100
}

// increase computes (adaptive - baseline) / baseline * 100; positive means
// the adaptive twin moves more vehicles.
func increase(adaptive, baseline float64) float64 {
	if baseline == 0 {
		return 0
	}
	return (adaptive - baseline) / baseline * 100
}
