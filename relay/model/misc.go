package model

// Usage is the token accounting block of a completion response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
	// CachedTokens counts prompt tokens served from the provider's prompt
	// cache. Mirrored into PromptTokensDetails for OpenAI-shaped clients.
	CachedTokens int `json:"cached_tokens,omitempty"`
	// PromptTokensDetails may be empty for some providers.
	PromptTokensDetails *UsagePromptTokensDetails `json:"prompt_tokens_details,omitempty"`
}

// UsagePromptTokensDetails mirrors the OpenAI nested cache accounting.
type UsagePromptTokensDetails struct {
	CachedTokens int `json:"cached_tokens"`
}

// Normalize fills derived fields: the total when absent and the nested cached
// token details when only one representation was supplied by the provider.
func (u *Usage) Normalize() {
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	if u.CachedTokens == 0 && u.PromptTokensDetails != nil {
		u.CachedTokens = u.PromptTokensDetails.CachedTokens
	}
	if u.CachedTokens > 0 {
		if u.PromptTokensDetails == nil {
			u.PromptTokensDetails = &UsagePromptTokensDetails{}
		}
		u.PromptTokensDetails.CachedTokens = u.CachedTokens
	}
}

// Error is the OpenAI-compatible error body returned to clients.
type Error struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    any    `json:"code,omitempty"`
	// RawError preserves the original upstream or internal error for
	// diagnostics. Omitted from JSON to avoid leaking provider internals.
	RawError error `json:"-"`
}

type ErrorWithStatusCode struct {
	Error
	StatusCode int `json:"status_code"`
	// Kind classifies the failure for the fallback decision.
	Kind ErrorKind `json:"-"`
	// Provider names the upstream that produced the failure, when known.
	Provider string `json:"-"`
}
