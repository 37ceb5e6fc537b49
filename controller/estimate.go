package controller

import (
	"fmt"
	"net/http"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/gin-gonic/gin"

	"github.com/makehub/llm-gateway/common"
	"github.com/makehub/llm-gateway/common/config"
	"github.com/makehub/llm-gateway/common/ctxkey"
	"github.com/makehub/llm-gateway/family"
	rcontroller "github.com/makehub/llm-gateway/relay/controller"
	relaymodel "github.com/makehub/llm-gateway/relay/model"
)

// EstimateEntry prices one ranked candidate for the caller's request without
// executing it.
type EstimateEntry struct {
	Provider              string  `json:"provider"`
	AdapterType           string  `json:"adapter_type"`
	EstimatedPromptTokens int     `json:"estimated_prompt_tokens"`
	MaxCompletionTokens   int     `json:"max_completion_tokens"`
	EstimatedPromptCost   float64 `json:"estimated_prompt_cost"`
	MaxCompletionCost     float64 `json:"max_completion_cost"`
	EstimatedMaxCost      float64 `json:"estimated_max_cost"`
	Score                 float64 `json:"score"`
}

// EstimateCost is the POST /v1/chat/estimate handler: the selector ranking
// plus tokenizer-based price arithmetic, nothing forwarded upstream. Family
// aliases price against the family's fallback model; running the evaluator
// here would bill the user for a request that never executes.
func EstimateCost(c *gin.Context) {
	lg := gmw.GetLogger(c)
	userId := c.GetInt(ctxkey.UserId)

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

	resolvedModel := request.Model.Requested()
	if request.Model.IsFamily() {
		var decision *family.Decision
		if FamilyRouter != nil {
			decision = FamilyRouter.Fallback(resolvedModel)
		}
		if decision == nil {
			writeTerminal(c, rcontroller.NewTerminalError(relaymodel.ErrKindValidation,
				fmt.Sprintf("unknown model family %q", resolvedModel)))
			return
		}
		resolvedModel = decision.TargetModel
	}

	candidates, err := Selector.Rank(lg, resolvedModel, request, userId, rankingOptions(request))
	if err != nil {
		writeTerminal(c, rcontroller.NewTerminalError(relaymodel.ErrKindNoProviders,
			fmt.Sprintf("no provider can serve %q with the requested capabilities", resolvedModel)))
		return
	}

	entries := make([]EstimateEntry, 0, len(candidates))
	for _, cand := range candidates {
		maxCompletion := request.MaxTokens
		if maxCompletion <= 0 {
			maxCompletion = config.DefaultMaxTokens
		}
		promptCost := float64(cand.EstimatedPromptTokens) * cand.Model.PricePerInputToken
		completionCost := float64(maxCompletion) * cand.Model.PricePerOutputToken
		entries = append(entries, EstimateEntry{
			Provider:              cand.Model.Provider,
			AdapterType:           cand.Model.AdapterType,
			EstimatedPromptTokens: cand.EstimatedPromptTokens,
			MaxCompletionTokens:   maxCompletion,
			EstimatedPromptCost:   promptCost,
			MaxCompletionCost:     completionCost,
			EstimatedMaxCost:      promptCost + completionCost,
			Score:                 cand.DistanceScore,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"model":      resolvedModel,
		"candidates": entries,
	})
}
