package aws

import (
	"context"
	"net/http"

	"github.com/Laisky/errors/v2"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	relaymodel "github.com/makehub/llm-gateway/relay/model"
)

// classifyInvokeError maps Bedrock SDK failures onto the error taxonomy. A
// ValidationException means the request body is semantically bad and will be
// bad for every provider, so it blocks fallback.
func classifyInvokeError(err error, provider string) *relaymodel.ErrorWithStatusCode {
	kind := relaymodel.ErrKindAPI
	status := http.StatusBadGateway

	var validation *types.ValidationException
	var throttling *types.ThrottlingException
	var notFound *types.ResourceNotFoundException
	var accessDenied *types.AccessDeniedException
	var modelTimeout *types.ModelTimeoutException
	switch {
	case errors.As(err, &validation):
		kind = relaymodel.ErrKindValidation
		status = http.StatusBadRequest
	case errors.As(err, &throttling):
		kind = relaymodel.ErrKindRateLimit
		status = http.StatusTooManyRequests
	case errors.As(err, &notFound), errors.As(err, &accessDenied):
		kind = relaymodel.ErrKindConfiguration
		status = http.StatusNotFound
	case errors.As(err, &modelTimeout), errors.Is(err, context.DeadlineExceeded):
		kind = relaymodel.ErrKindTimeout
		status = http.StatusGatewayTimeout
	}

	return &relaymodel.ErrorWithStatusCode{
		StatusCode: status,
		Kind:       kind,
		Provider:   provider,
		Error: relaymodel.Error{
			Message:  err.Error(),
			Type:     "upstream_error",
			RawError: err,
		},
	}
}
