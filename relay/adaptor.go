package relay

import (
	"github.com/makehub/llm-gateway/model"
	"github.com/makehub/llm-gateway/relay/adaptor"
	"github.com/makehub/llm-gateway/relay/adaptor/anthropic"
	"github.com/makehub/llm-gateway/relay/adaptor/aws"
	"github.com/makehub/llm-gateway/relay/adaptor/openai"
	"github.com/makehub/llm-gateway/relay/adaptor/vertexai"
)

// GetAdaptor returns a fresh adapter for the given adapter type. The set is
// closed; an unknown type returns nil and the caller treats the row as
// misconfigured.
func GetAdaptor(adapterType string) adaptor.Adaptor {
	switch adapterType {
	case model.AdapterOpenAI, model.AdapterAzureOpenAI:
		return &openai.Adaptor{}
	case model.AdapterAnthropic:
		return &anthropic.Adaptor{}
	case model.AdapterBedrockAnthropic:
		return &aws.Adaptor{}
	case model.AdapterVertexAnthropic:
		return &vertexai.Adaptor{}
	default:
		return nil
	}
}
