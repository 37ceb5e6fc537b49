// Package selector ranks the providers able to serve a request. Candidates
// pass hard capability filters, then get scored by distance to an optimal
// point in (price, throughput, latency) space positioned by the caller's
// speed_vs_price preference. Lower score wins.
package selector

import (
	"math"
	"slices"
	"sort"

	"github.com/Laisky/errors/v2"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"

	"github.com/makehub/llm-gateway/model"
	"github.com/makehub/llm-gateway/registry"
	relaymodel "github.com/makehub/llm-gateway/relay/model"
	"github.com/makehub/llm-gateway/relay/token"
)

// ErrNoProviders is returned when the hard filters reject every candidate.
var ErrNoProviders = errors.New("no_providers_available")

// Combination is one ranked candidate with the numbers that produced its
// score.
type Combination struct {
	Model              *model.Model
	PriceSum           float64
	ThroughputMedianTS *float64
	LatencyMedianMs    *float64
	CachingBoost       bool
	DistanceScore      float64
	// EstimatedPromptTokens is the tokenizer estimate used by the context
	// window filter, kept for the estimate endpoint and meta.
	EstimatedPromptTokens int
}

// Options carries the caller's routing constraints.
type Options struct {
	// SpeedVsPrice in [0,100]; 0 prefers cheap, 100 prefers fast.
	SpeedVsPrice int
	// Providers, when non-empty, is an allow-list.
	Providers []string
	// MaxCostPerToken excludes models whose input or output price exceeds it.
	MaxCostPerToken *float64
}

type metricsReader interface {
	GetPerformance(modelId string, providers []string, windowSize int) (map[string]model.PerformanceStat, error)
	GetCacheHistory(userId int, modelId string, providers []string) (map[string]bool, error)
}

// storeReader adapts the package-level metrics queries.
type storeReader struct {
	windowSize int
}

func (storeReader) GetPerformance(modelId string, providers []string, windowSize int) (map[string]model.PerformanceStat, error) {
	return model.GetPerformance(modelId, providers, windowSize)
}

func (storeReader) GetCacheHistory(userId int, modelId string, providers []string) (map[string]bool, error) {
	return model.GetCacheHistory(userId, modelId, providers)
}

// Selector binds a registry and a metrics source. The zero-dependency
// constructor wires production storage.
type Selector struct {
	registry   *registry.Registry
	metrics    metricsReader
	windowSize int
}

func New(reg *registry.Registry, windowSize int) *Selector {
	return &Selector{registry: reg, metrics: storeReader{}, windowSize: windowSize}
}

// NewWithMetrics lets tests supply canned performance data.
func NewWithMetrics(reg *registry.Registry, metrics metricsReader, windowSize int) *Selector {
	return &Selector{registry: reg, metrics: metrics, windowSize: windowSize}
}

// Rank returns candidates able to serve req for resolvedModel, best first.
// Returns ErrNoProviders when nothing survives the hard filters.
func (s *Selector) Rank(lg glog.Logger, resolvedModel string, req *relaymodel.StandardRequest, userId int, opts Options) ([]*Combination, error) {
	estimate := token.CountRequest(resolvedModel, req)

	candidates := s.filter(resolvedModel, req, estimate, opts)
	if len(candidates) == 0 {
		return nil, errors.WithStack(ErrNoProviders)
	}

	// A single survivor has nothing to be normalized against; scoring it
	// would be degenerate, so it wins outright.
	if len(candidates) == 1 {
		candidates[0].EstimatedPromptTokens = estimate
		return candidates, nil
	}

	providers := make([]string, 0, len(candidates))
	for _, cand := range candidates {
		cand.EstimatedPromptTokens = estimate
		providers = append(providers, cand.Model.Provider)
	}

	perf, err := s.metrics.GetPerformance(resolvedModel, providers, s.windowSize)
	if err != nil {
		return nil, errors.Wrap(err, "read performance metrics")
	}
	cacheHits, err := s.metrics.GetCacheHistory(userId, resolvedModel, providers)
	if err != nil {
		return nil, errors.Wrap(err, "read cache history")
	}

	for _, cand := range candidates {
		stat := perf[cand.Model.Provider]
		cand.ThroughputMedianTS = stat.ThroughputMedianTS
		cand.LatencyMedianMs = stat.LatencyMedianMs
		cand.CachingBoost = cacheHits[cand.Model.Provider]
	}

	score(candidates, opts.SpeedVsPrice)

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].DistanceScore < candidates[j].DistanceScore
	})

	for _, cand := range candidates {
		lg.Debug("provider candidate scored",
			zap.String("model", cand.Model.ModelId),
			zap.String("provider", cand.Model.Provider),
			zap.Float64("price_sum", cand.PriceSum),
			zap.Float64p("throughput_median_ts", cand.ThroughputMedianTS),
			zap.Float64p("latency_median_ms", cand.LatencyMedianMs),
			zap.Bool("caching_boost", cand.CachingBoost),
			zap.Float64("score", cand.DistanceScore))
	}
	return candidates, nil
}

// filter applies the hard exclusion rules.
func (s *Selector) filter(resolvedModel string, req *relaymodel.StandardRequest, estimate int, opts Options) []*Combination {
	rows := s.registry.LookupExact(resolvedModel)
	hasTools := req.HasTools()
	hasImages := req.HasImages()

	var out []*Combination
	for _, row := range rows {
		if hasTools && !row.SupportToolCalling {
			continue
		}
		if hasImages && !row.SupportVision {
			continue
		}
		if row.ContextWindow > 0 && estimate > row.ContextWindow {
			continue
		}
		if len(opts.Providers) > 0 && !slices.Contains(opts.Providers, row.Provider) {
			continue
		}
		if opts.MaxCostPerToken != nil &&
			(row.PricePerInputToken > *opts.MaxCostPerToken || row.PricePerOutputToken > *opts.MaxCostPerToken) {
			continue
		}
		out = append(out, &Combination{
			Model:    row,
			PriceSum: row.PricePerInputToken + row.PricePerOutputToken,
		})
	}
	return out
}

// score fills DistanceScore in place. Each axis is min-max normalized across
// the candidate set; candidates without metrics take the set's median on the
// missing axis. Every coordinate points toward "good": cheapness (1-price),
// throughput, and responsiveness (1-latency). The optimal point is
// O = (1-r, r, r) with r = speedVsPrice/100, so r=0 rewards cheap and r=1
// rewards fast. The score is the Euclidean distance, halved for cache-boosted
// entries.
func score(candidates []*Combination, speedVsPrice int) {
	r := float64(speedVsPrice) / 100

	prices := make([]float64, len(candidates))
	throughputs := make([]float64, len(candidates))
	latencies := make([]float64, len(candidates))

	var definedT, definedL []float64
	for i, cand := range candidates {
		prices[i] = cand.PriceSum
		if cand.ThroughputMedianTS != nil {
			definedT = append(definedT, *cand.ThroughputMedianTS)
		}
		if cand.LatencyMedianMs != nil {
			definedL = append(definedL, *cand.LatencyMedianMs)
		}
	}
	medT := medianOf(definedT)
	medL := medianOf(definedL)
	for i, cand := range candidates {
		if cand.ThroughputMedianTS != nil {
			throughputs[i] = *cand.ThroughputMedianTS
		} else {
			throughputs[i] = medT
		}
		if cand.LatencyMedianMs != nil {
			latencies[i] = *cand.LatencyMedianMs
		} else {
			latencies[i] = medL
		}
	}

	normP := normalize(prices)
	normT := normalize(throughputs)
	normL := normalize(latencies)

	optimal := [3]float64{1 - r, r, r}
	for i, cand := range candidates {
		point := [3]float64{1 - normP[i], normT[i], 1 - normL[i]}
		d := math.Sqrt(
			(point[0]-optimal[0])*(point[0]-optimal[0]) +
				(point[1]-optimal[1])*(point[1]-optimal[1]) +
				(point[2]-optimal[2])*(point[2]-optimal[2]))
		if cand.CachingBoost {
			d *= 0.5
		}
		cand.DistanceScore = d
	}
}

// normalize maps values onto [0,1] by min-max. A flat set normalizes to all
// zeros, which cancels out of the ranking.
func normalize(values []float64) []float64 {
	minV, maxV := values[0], values[0]
	for _, v := range values[1:] {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	out := make([]float64, len(values))
	if maxV == minV {
		return out
	}
	for i, v := range values {
		out[i] = (v - minV) / (maxV - minV)
	}
	return out
}

func medianOf(values []float64) float64 {
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
