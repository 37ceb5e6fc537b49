package model

import (
	"sort"
	"time"

	"github.com/Laisky/errors/v2"

	"github.com/makehub/llm-gateway/common/config"
)

// MetricsSample is one row per relay attempt that produced a response (or a
// terminal failure). It feeds the selector's performance medians and the
// per-user cache history.
type MetricsSample struct {
	Id               int     `json:"id" gorm:"primaryKey;autoIncrement"`
	RequestId        string  `json:"request_id" gorm:"index;size:64"`
	UserId           int     `json:"user_id" gorm:"index:idx_user_model_provider"`
	ModelId          string  `json:"model_id" gorm:"index:idx_user_model_provider;index:idx_model_provider_perf;size:128"`
	Provider         string  `json:"provider" gorm:"index:idx_user_model_provider;index:idx_model_provider_perf;size:64"`
	Adapter          string  `json:"adapter" gorm:"size:32"`
	Streamed         bool    `json:"streamed"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	CachedTokens     int     `json:"cached_tokens"`
	Cost             float64 `json:"cost"`
	TotalDurationMs  int64   `json:"total_duration_ms"`
	// TimeToFirstChunkMs is zero for non-streamed calls.
	TimeToFirstChunkMs int64   `json:"time_to_first_chunk_ms"`
	ThroughputTokensS  float64 `json:"throughput_tokens_s"`
	AttemptNumber      int     `json:"attempt_number"`
	// Success is "true", "false" or "partial" (client disconnected mid-stream).
	Success   string    `json:"success" gorm:"size:8"`
	ErrorKind string    `json:"error_kind,omitempty" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
}

func (MetricsSample) TableName() string {
	return "metrics_samples"
}

// RecordMetricsSample persists one attempt outcome.
func RecordMetricsSample(sample *MetricsSample) error {
	if err := DB.Create(sample).Error; err != nil {
		return errors.Wrap(err, "insert metrics sample")
	}
	return nil
}

// PerformanceStat summarizes recent samples for one provider. Nil medians mean
// the provider has no usable samples; the selector substitutes the candidate
// set's median.
type PerformanceStat struct {
	ThroughputMedianTS *float64
	LatencyMedianMs    *float64
	SampleCount        int
}

// GetPerformance returns per-provider medians of throughput and latency over
// the last windowSize samples with a defined throughput. One round trip
// regardless of provider count: rows are over-fetched newest-first and grouped
// here.
func GetPerformance(modelId string, providers []string, windowSize int) (map[string]PerformanceStat, error) {
	if windowSize <= 0 {
		windowSize = 10
	}
	result := make(map[string]PerformanceStat, len(providers))
	for _, p := range providers {
		result[p] = PerformanceStat{}
	}
	if len(providers) == 0 {
		return result, nil
	}

	var rows []MetricsSample
	err := DB.
		Select("provider", "throughput_tokens_s", "total_duration_ms").
		Where("model_id = ? AND provider IN ? AND throughput_tokens_s > 0", modelId, providers).
		Order("id DESC").
		Limit(windowSize * len(providers)).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "query performance samples")
	}

	throughputs := make(map[string][]float64, len(providers))
	latencies := make(map[string][]float64, len(providers))
	for _, row := range rows {
		if len(throughputs[row.Provider]) >= windowSize {
			continue
		}
		throughputs[row.Provider] = append(throughputs[row.Provider], row.ThroughputTokensS)
		latencies[row.Provider] = append(latencies[row.Provider], float64(row.TotalDurationMs))
	}

	for provider, ts := range throughputs {
		tMed := median(ts)
		lMed := median(latencies[provider])
		result[provider] = PerformanceStat{
			ThroughputMedianTS: &tMed,
			LatencyMedianMs:    &lMed,
			SampleCount:        len(ts),
		}
	}
	return result, nil
}

// GetCacheHistory reports, per provider, whether the user saw at least one
// prompt-cache hit among their last CacheHistoryWindow requests on
// (model, provider). One round trip; grouping happens here.
func GetCacheHistory(userId int, modelId string, providers []string) (map[string]bool, error) {
	window := config.CacheHistoryWindow
	if window <= 0 {
		window = 5
	}
	result := make(map[string]bool, len(providers))
	for _, p := range providers {
		result[p] = false
	}
	if len(providers) == 0 {
		return result, nil
	}

	var rows []MetricsSample
	err := DB.
		Select("provider", "cached_tokens").
		Where("user_id = ? AND model_id = ? AND provider IN ?", userId, modelId, providers).
		Order("id DESC").
		Limit(window * len(providers)).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "query cache history")
	}

	seen := make(map[string]int, len(providers))
	for _, row := range rows {
		if seen[row.Provider] >= window {
			continue
		}
		seen[row.Provider]++
		if row.CachedTokens > 0 {
			result[row.Provider] = true
		}
	}
	return result, nil
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
