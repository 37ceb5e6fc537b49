package ctxkey

import "github.com/gin-gonic/gin"

const (
	// UserId is the authenticated caller id for the current request.
	// Set in: middleware/auth (API key or JWT).
	// Read in: billing, metrics, family routing cache keys.
	UserId = "user_id"

	// ApiKeyId is the id of the API key used for this request, when key auth was used.
	// Set in: middleware/auth.
	ApiKeyId = "api_key_id"

	// RequestId is a per-request unique identifier carried through logs, metrics
	// and the wallet ledger. The literal matches the response header name.
	RequestId = "X-Request-Id"

	// RequestModel is the model reference exactly as the client sent it, either
	// "model_id" or "model_id:provider". Never mutated; used for logging and the
	// response model field.
	RequestModel = "request_model"

	// ResolvedModel is the concrete model id after family routing resolved any
	// "<ns>/family" alias. Read by the selector and metrics emission.
	ResolvedModel = "resolved_model"

	// RoutingSource records how the model was chosen: "explicit" or "family:<name>".
	RoutingSource = "routing_source"

	// Provider is the provider name of the candidate currently being attempted.
	// Set per attempt in the orchestrator loop.
	Provider = "provider"

	// AttemptNumber is the 1-based index of the current attempt in the fallback chain.
	AttemptNumber = "attempt_number"

	// ConvertedRequest holds the provider-specific request body after translation.
	// Set by adapters in ConvertRequest, read by adapters that issue SDK calls in
	// DoResponse (bedrock) instead of plain HTTP.
	ConvertedRequest = "converted_request"

	// KeyRequestBody caches the raw request body bytes for reuse (avoid double read).
	// Set in: common/gin.go GetRequestBody and UnmarshalBodyReusable.
	KeyRequestBody = gin.BodyBytesKey

	// Meta holds the aggregated per-request meta (relay/meta.GetByContext).
	// Read anywhere the selected candidate, pricing or timeout is needed.
	Meta = "meta"

	// StreamingTracker stores the active usage tracker for streaming flows.
	// Set in: relay/controller when a streamed attempt starts.
	// Read in: adapters to record chunk timing and token progress.
	StreamingTracker = "streaming_tracker"
)
