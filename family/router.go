package family

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
	gocache "github.com/patrickmn/go-cache"

	"github.com/makehub/llm-gateway/common/config"
	relaymodel "github.com/makehub/llm-gateway/relay/model"
)

// Completer issues the evaluator side-call. The production implementation
// relays through a concrete provider and debits the evaluator cost to the
// user without surfacing it in the response.
type Completer interface {
	Complete(ctx context.Context, userId int, modelId, provider, prompt string) (string, error)
}

// evaluationPrompt constrains the evaluator to a bare integer verdict.
const evaluationPrompt = `Rate the complexity of the following task on a scale from 1 to 100, where 1 is trivial (greetings, one-line lookups) and 100 is extremely complex (multi-step reasoning, long-form synthesis, intricate code).

Respond with a single integer between 1 and 100 and nothing else.

Task:
%s`

// fingerprintLimit truncates the message before hashing so minor tail edits of
// long prompts still reuse the routing decision.
const fingerprintLimit = 256

var scoreRe = regexp.MustCompile(`\d{1,3}`)

// Decision is a cached routing outcome.
type Decision struct {
	TargetModel string
	Score       int
	Fallback    bool
}

type Router struct {
	cfg       *Config
	completer Completer
	cache     *gocache.Cache
}

func NewRouter(cfg *Config, completer Completer) *Router {
	return &Router{
		cfg:       cfg,
		completer: completer,
		cache:     gocache.New(config.FamilyCacheDuration, 10*time.Minute),
	}
}

// Lookup returns the family for an alias like "makehub-sota/family", or nil.
func (r *Router) Lookup(alias string) *Family {
	if r == nil || r.cfg == nil {
		return nil
	}
	id, ok := strings.CutSuffix(alias, "/family")
	if !ok {
		return nil
	}
	fam := r.cfg.Families[id]
	if fam == nil || !fam.IsActive {
		return nil
	}
	return fam
}

// Resolve maps a family alias to a concrete model for this user and prompt.
// Decisions are cached per (user, family, prompt fingerprint); evaluator
// failures of any kind route to the family's fallback model.
func (r *Router) Resolve(ctx context.Context, lg glog.Logger, userId int, alias string, req *relaymodel.StandardRequest) (*Decision, error) {
	fam := r.Lookup(alias)
	if fam == nil {
		return nil, errors.Errorf("unknown or inactive family %q", alias)
	}

	cacheKey := fmt.Sprintf("%d:%s:%s", userId, alias, fingerprint(req))
	if cached, ok := r.cache.Get(cacheKey); ok {
		return cached.(*Decision), nil
	}

	decision := r.evaluate(ctx, lg, userId, fam, req)

	ttl := config.FamilyCacheDuration
	if fam.RoutingConfig.CacheDurationMinutes > 0 {
		ttl = time.Duration(fam.RoutingConfig.CacheDurationMinutes) * time.Minute
	}
	r.cache.Set(cacheKey, decision, ttl)
	return decision, nil
}

// Fallback returns the family's fallback decision, used when a routed target
// does not survive provider filtering.
func (r *Router) Fallback(alias string) *Decision {
	fam := r.Lookup(alias)
	if fam == nil {
		return nil
	}
	return &Decision{TargetModel: fam.RoutingConfig.FallbackModel, Fallback: true}
}

func (r *Router) evaluate(ctx context.Context, lg glog.Logger, userId int, fam *Family, req *relaymodel.StandardRequest) *Decision {
	fallback := &Decision{TargetModel: fam.RoutingConfig.FallbackModel, Fallback: true}

	timeout := config.FamilyEvalTimeout
	if fam.RoutingConfig.EvaluationTimeoutMs > 0 {
		timeout = time.Duration(fam.RoutingConfig.EvaluationTimeoutMs) * time.Millisecond
	}
	evalCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt := fmt.Sprintf(evaluationPrompt, lastUserMessage(req))
	output, err := r.completer.Complete(evalCtx, userId, fam.EvaluationModelId, fam.EvaluationProvider, prompt)
	if err != nil {
		lg.Warn("family evaluator call failed, using fallback",
			zap.String("evaluator", fam.EvaluationModelId),
			zap.Error(err))
		return fallback
	}

	score, ok := parseScore(output)
	if !ok {
		lg.Warn("family evaluator output unparseable, using fallback",
			zap.String("output", output))
		return fallback
	}

	target, ok := fam.TargetForScore(score)
	if !ok {
		return fallback
	}
	lg.Debug("family routed",
		zap.Int("score", score),
		zap.String("target", target))
	return &Decision{TargetModel: target, Score: score}
}

// parseScore extracts the integer verdict, tolerating stray whitespace or
// punctuation around it.
func parseScore(output string) (int, bool) {
	match := scoreRe.FindString(strings.TrimSpace(output))
	if match == "" {
		return 0, false
	}
	score, err := strconv.Atoi(match)
	if err != nil || score < 1 || score > 100 {
		return 0, false
	}
	return score, true
}

// fingerprint hashes the truncated last user message.
func fingerprint(req *relaymodel.StandardRequest) string {
	text := lastUserMessage(req)
	if len(text) > fingerprintLimit {
		text = text[:fingerprintLimit]
	}
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:8])
}

func lastUserMessage(req *relaymodel.StandardRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].StringContent()
		}
	}
	return ""
}
