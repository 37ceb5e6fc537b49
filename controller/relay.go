// Package controller hosts the HTTP handlers: the chat-completion
// orchestrator with its fallback loop, the catalog and estimate endpoints and
// the operational surface.
package controller

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/makehub/llm-gateway/common"
	"github.com/makehub/llm-gateway/common/config"
	"github.com/makehub/llm-gateway/common/ctxkey"
	"github.com/makehub/llm-gateway/family"
	dbmodel "github.com/makehub/llm-gateway/model"
	"github.com/makehub/llm-gateway/monitor"
	"github.com/makehub/llm-gateway/registry"
	"github.com/makehub/llm-gateway/relay/billing"
	rcontroller "github.com/makehub/llm-gateway/relay/controller"
	"github.com/makehub/llm-gateway/relay/meta"
	relaymodel "github.com/makehub/llm-gateway/relay/model"
	"github.com/makehub/llm-gateway/relay/streaming"
	"github.com/makehub/llm-gateway/selector"
)

// Package-level wiring, set once in main before the server starts.
var (
	Selector     *selector.Selector
	FamilyRouter *family.Router
)

func init() {
	Selector = selector.New(registry.Default, config.PerformanceWindowSize)
}

// RelayChatCompletions is the POST /v1/chat/completions handler: resolve the
// model, rank providers, walk the ranking until one attempt succeeds.
func RelayChatCompletions(c *gin.Context) {
	lg := gmw.GetLogger(c)
	startTime := time.Now()
	defer withRequestTimeout(c)()
	userId := c.GetInt(ctxkey.UserId)
	requestId := c.GetString(ctxkey.RequestId)

	request := &relaymodel.StandardRequest{}
	if err := common.UnmarshalBodyReusable(c, request); err != nil {
		writeTerminal(c, rcontroller.NewTerminalError(relaymodel.ErrKindValidation,
			"invalid request body: "+err.Error()))
		return
	}
	if err := validateRequestShape(request); err != nil {
		writeTerminal(c, rcontroller.NewTerminalError(relaymodel.ErrKindValidation, err.Error()))
		return
	}

	balance, err := dbmodel.CacheGetUserBalance(userId)
	if err != nil {
		lg.Error("balance lookup failed", zap.Int("user_id", userId), zap.Error(err))
		writeTerminal(c, rcontroller.NewTerminalError(relaymodel.ErrKindUnknown,
			"balance lookup failed"))
		return
	}
	if balance < config.MinimalFund {
		writeTerminal(c, rcontroller.NewTerminalError(relaymodel.ErrKindInsufficientFunds,
			fmt.Sprintf("balance %.6f below required minimum %.6f", balance, config.MinimalFund)))
		return
	}

	requested := request.Model.Requested()
	resolvedModel := requested
	routingSource := "explicit"
	routedByFamily := false

	if request.Model.IsFamily() {
		if FamilyRouter == nil {
			writeTerminal(c, rcontroller.NewTerminalError(relaymodel.ErrKindValidation,
				fmt.Sprintf("unknown model family %q", requested)))
			return
		}
		evalCtx := rcontroller.WithRequestId(gmw.Ctx(c), requestId)
		decision, err := FamilyRouter.Resolve(evalCtx, lg, userId, requested, request)
		if err != nil {
			writeTerminal(c, rcontroller.NewTerminalError(relaymodel.ErrKindValidation, err.Error()))
			return
		}
		resolvedModel = decision.TargetModel
		routingSource = "family:" + strings.TrimSuffix(requested, "/family")
		routedByFamily = !decision.Fallback
		lg.Info("family alias resolved",
			zap.String("alias", requested),
			zap.String("target", resolvedModel),
			zap.Int("score", decision.Score),
			zap.Bool("fallback", decision.Fallback))
	}

	c.Set(ctxkey.RequestModel, requested)
	c.Set(ctxkey.ResolvedModel, resolvedModel)
	c.Set(ctxkey.RoutingSource, routingSource)

	opts := rankingOptions(request)
	candidates, err := Selector.Rank(lg, resolvedModel, request, userId, opts)
	if err != nil && routedByFamily {
		// A routed target that nothing can serve falls back to the family's
		// safety net before giving up.
		if fb := FamilyRouter.Fallback(requested); fb != nil {
			lg.Warn("routed family target has no providers, using family fallback",
				zap.String("target", resolvedModel),
				zap.String("fallback", fb.TargetModel))
			resolvedModel = fb.TargetModel
			c.Set(ctxkey.ResolvedModel, resolvedModel)
			candidates, err = Selector.Rank(lg, resolvedModel, request, userId, opts)
		}
	}
	if err != nil {
		writeTerminal(c, rcontroller.NewTerminalError(relaymodel.ErrKindNoProviders,
			fmt.Sprintf("no provider can serve %q with the requested capabilities", resolvedModel)))
		return
	}

	var lastErr *relaymodel.ErrorWithStatusCode
	for i, cand := range candidates {
		extraParams, perr := cand.Model.GetExtraParams()
		if perr != nil {
			lg.Error("candidate extra_param undecodable, skipping",
				zap.String("provider", cand.Model.Provider), zap.Error(perr))
			continue
		}
		mergeModelRefParams(extraParams, request)

		m := &meta.Meta{
			RequestId:            requestId,
			UserId:               userId,
			RequestModel:         requested,
			ResolvedModel:        resolvedModel,
			RoutingSource:        routingSource,
			Model:                cand.Model,
			ExtraParams:          extraParams,
			AttemptNumber:        i + 1,
			IsStream:             request.Stream,
			SpeedVsPrice:         opts.SpeedVsPrice,
			PromptTokensEstimate: cand.EstimatedPromptTokens,
			StartTime:            time.Now(),
		}
		meta.Set2Context(c, m)
		c.Set(ctxkey.Provider, cand.Model.Provider)
		c.Set(ctxkey.AttemptNumber, m.AttemptNumber)

		var tracker *streaming.Tracker
		if request.Stream {
			tracker = streaming.NewTracker(m.StartTime)
			streaming.Install(c, tracker)
		}

		lg.Info("attempting provider",
			zap.String("model", cand.Model.ModelId),
			zap.String("provider", cand.Model.Provider),
			zap.Int("attempt", m.AttemptNumber),
			zap.Float64("score", cand.DistanceScore))

		usage, bizErr := rcontroller.Attempt(c, m, request)
		if bizErr == nil {
			finishAttempt(c, m, tracker, usage)
			return
		}
		lastErr = bizErr

		if tracker != nil && tracker.TimeToFirstChunkMs() > 0 {
			// Chunks already reached the client; the stream is committed to
			// this provider. Terminate it and debit what was observed.
			lg.Error("stream failed after first chunk, terminating",
				zap.String("provider", cand.Model.Provider),
				zap.Error(bizErr.RawError))
			terminateBrokenStream(c, m, tracker, bizErr)
			return
		}

		emitSample(c, m, nil, 0, "false", string(bizErr.Kind))
		monitor.RecordAttempt(cand.Model.Provider, resolvedModel, false)

		if !bizErr.Kind.Retryable() {
			lg.Warn("terminal provider error, not falling back",
				zap.String("provider", cand.Model.Provider),
				zap.String("kind", string(bizErr.Kind)),
				zap.Int("status", bizErr.StatusCode))
			writeTerminal(c, bizErr)
			return
		}

		lg.Warn("provider attempt failed, advancing",
			zap.String("provider", cand.Model.Provider),
			zap.String("kind", string(bizErr.Kind)),
			zap.Int("status", bizErr.StatusCode),
			zap.Error(bizErr.RawError))
		if bizErr.StatusCode >= 500 || bizErr.Kind == relaymodel.ErrKindTimeout {
			monitor.Notify(monitor.SeverityWarning, fmt.Sprintf(
				"upstream failure on %s/%s: status=%d kind=%s",
				resolvedModel, cand.Model.Provider, bizErr.StatusCode, bizErr.Kind))
		}
	}

	exhausted := rcontroller.NewTerminalError(relaymodel.ErrKindAllFailed,
		fmt.Sprintf("all %d providers failed for %q", len(candidates), resolvedModel))
	if lastErr != nil {
		exhausted.Error.Message = fmt.Sprintf("all %d providers failed for %q, last error (%s): %s",
			len(candidates), resolvedModel, lastErr.Kind, lastErr.Message)
	}
	lg.Error("provider ranking exhausted",
		zap.String("model", resolvedModel),
		zap.Int("candidates", len(candidates)),
		zap.Duration("elapsed", time.Since(startTime)))
	writeTerminal(c, exhausted)
}

// finishAttempt settles a successful attempt: billing, metrics, bookkeeping.
// The response itself has already been written by the adapter.
func finishAttempt(c *gin.Context, m *meta.Meta, tracker *streaming.Tracker, usage *relaymodel.Usage) {
	success := "true"
	if m.IsStream && c.Request.Context().Err() != nil {
		success = "partial"
	}
	if usage == nil && tracker != nil {
		usage = tracker.Usage()
	}

	cost := billing.Cost(m.Model, usage)
	if usage != nil {
		billing.Debit(c, m, cost)
	}
	emitSample(c, m, usage, cost, success, "")
	monitor.RecordAttempt(m.Model.Provider, m.ResolvedModel, true)
}

// terminateBrokenStream closes a stream that died mid-flight with a final
// error chunk and settles the partial usage.
func terminateBrokenStream(c *gin.Context, m *meta.Meta, tracker *streaming.Tracker, bizErr *relaymodel.ErrorWithStatusCode) {
	common.SetEventStreamHeaders(c)
	chunk := fmt.Sprintf(`{"error": {"message": %q, "type": "upstream_error", "code": %q}}`,
		bizErr.Message, string(bizErr.Kind))
	c.Render(-1, common.CustomEvent{Data: "data: " + chunk})
	common.Done(c)

	usage := tracker.Usage()
	cost := billing.Cost(m.Model, usage)
	billing.Debit(c, m, cost)
	emitSample(c, m, usage, cost, "partial", string(bizErr.Kind))
	monitor.RecordAttempt(m.Model.Provider, m.ResolvedModel, false)
}

// withRequestTimeout puts a hard deadline on the request context. Streaming
// attempts run on a client with no timeout of its own, so this deadline is the
// only bound on a hung upstream.
func withRequestTimeout(c *gin.Context) context.CancelFunc {
	if config.RequestTimeout <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(),
		time.Duration(config.RequestTimeout)*time.Second)
	c.Request = c.Request.WithContext(ctx)
	return cancel
}

func rankingOptions(request *relaymodel.StandardRequest) selector.Options {
	opts := selector.Options{
		SpeedVsPrice:    config.DefaultSpeedVsPrice,
		Providers:       request.Providers,
		MaxCostPerToken: request.MaxCostPerToken,
	}
	if request.SpeedVsPrice != nil {
		v := *request.SpeedVsPrice
		if v < 0 {
			v = 0
		}
		if v > 100 {
			v = 100
		}
		opts.SpeedVsPrice = v
	}
	return opts
}

// mergeModelRefParams overlays the object-form model reference's extra_param
// on top of the registry row's parameters.
func mergeModelRefParams(params map[string]string, request *relaymodel.StandardRequest) {
	for k, v := range request.Model.ExtraParam {
		params[k] = v
	}
}

var validRoles = map[string]bool{
	"system":    true,
	"user":      true,
	"assistant": true,
	"tool":      true,
}

// validateRequestShape rejects requests that no provider could serve. These
// failures never enter the attempt loop.
func validateRequestShape(request *relaymodel.StandardRequest) error {
	if request.Model.Requested() == "" {
		return errors.New("model is required")
	}
	if len(request.Messages) == 0 {
		return errors.New("messages must not be empty")
	}
	for i, msg := range request.Messages {
		if !validRoles[msg.Role] {
			return errors.Errorf("messages[%d]: invalid role %q", i, msg.Role)
		}
	}
	if request.MaxTokens < 0 {
		return errors.New("max_tokens must be non-negative")
	}
	for i := range request.Tools {
		if err := request.Tools[i].Validate(); err != nil {
			return errors.Wrapf(err, "tools[%d]", i)
		}
	}
	return nil
}

func writeTerminal(c *gin.Context, bizErr *relaymodel.ErrorWithStatusCode) {
	monitor.RecordRequestError(string(bizErr.Kind))
	rcontroller.WriteError(c, bizErr)
}

// RelayNotFound answers unmatched API routes in the OpenAI error shape.
func RelayNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error": relaymodel.Error{
			Message: fmt.Sprintf("Invalid URL (%s %s)", c.Request.Method, c.Request.URL.Path),
			Type:    "invalid_request_error",
		},
	})
}
