// Package controller executes a single relay attempt against one candidate
// provider: adapter staging, request conversion, the upstream call and
// response translation.
package controller

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"

	"github.com/makehub/llm-gateway/relay"
	"github.com/makehub/llm-gateway/relay/meta"
	relaymodel "github.com/makehub/llm-gateway/relay/model"
)

// Attempt runs the full adapter pipeline for one candidate. Configuration and
// provider-level validation failures come back as retryable errors so the
// orchestrator can advance down the ranking.
func Attempt(c *gin.Context, m *meta.Meta, request *relaymodel.StandardRequest) (*relaymodel.Usage, *relaymodel.ErrorWithStatusCode) {
	a := relay.GetAdaptor(m.Model.AdapterType)
	if a == nil {
		return nil, configurationError(
			errors.Errorf("unknown adapter type %q", m.Model.AdapterType), m.Model.Provider)
	}

	if err := a.Init(m); err != nil {
		return nil, configurationError(err, m.Model.Provider)
	}
	if !a.IsConfigured() {
		return nil, configurationError(
			errors.Errorf("adapter %s not configured", a.GetAdapterName()), m.Model.Provider)
	}
	if err := a.Validate(request); err != nil {
		// A shape this provider cannot serve may still suit another; the
		// orchestrator records it and advances.
		return nil, configurationError(errors.Wrap(err, "provider validation"), m.Model.Provider)
	}

	converted, err := a.ConvertRequest(c, m, request)
	if err != nil {
		return nil, configurationError(errors.Wrap(err, "convert request"), m.Model.Provider)
	}
	body, err := json.Marshal(converted)
	if err != nil {
		return nil, configurationError(errors.Wrap(err, "marshal converted request"), m.Model.Provider)
	}

	resp, err := a.DoRequest(c, m, bytes.NewReader(body))
	if err != nil {
		return nil, transportError(err, m.Model.Provider)
	}
	return a.DoResponse(c, resp, m)
}

func configurationError(err error, provider string) *relaymodel.ErrorWithStatusCode {
	return &relaymodel.ErrorWithStatusCode{
		StatusCode: http.StatusServiceUnavailable,
		Kind:       relaymodel.ErrKindConfiguration,
		Provider:   provider,
		Error: relaymodel.Error{
			Message:  err.Error(),
			Type:     "gateway_error",
			RawError: err,
		},
	}
}

// transportError classifies client-side failures of the upstream call:
// timeouts against the adapter deadline, refused connections, DNS failures.
func transportError(err error, provider string) *relaymodel.ErrorWithStatusCode {
	kind := relaymodel.ErrKindNetwork
	status := http.StatusBadGateway
	if isTimeout(err) {
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
