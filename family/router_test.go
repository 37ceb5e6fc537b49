package family

import (
	"context"
	"testing"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makehub/llm-gateway/common/logger"
	relaymodel "github.com/makehub/llm-gateway/relay/model"
)

type fakeCompleter struct {
	output string
	err    error
	calls  int
}

func (f *fakeCompleter) Complete(ctx context.Context, userId int, modelId, provider, prompt string) (string, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.output, f.err
}

func testRouter(completer Completer) *Router {
	return NewRouter(&Config{
		Families: map[string]*Family{
			"makehub-sota": validTestFamily(),
			"dormant": func() *Family {
				f := validTestFamily()
				f.IsActive = false
				return f
			}(),
		},
	}, completer)
}

func chatRequest(text string) *relaymodel.StandardRequest {
	return &relaymodel.StandardRequest{
		Model:    relaymodel.ModelRef{Alias: "makehub-sota/family"},
		Messages: []relaymodel.Message{{Role: "user", Content: text}},
	}
}

func TestLookup(t *testing.T) {
	r := testRouter(&fakeCompleter{})

	assert.NotNil(t, r.Lookup("makehub-sota/family"))
	assert.Nil(t, r.Lookup("makehub-sota"), "suffix is required")
	assert.Nil(t, r.Lookup("dormant/family"), "inactive families do not resolve")
	assert.Nil(t, r.Lookup("unknown/family"))

	var nilRouter *Router
	assert.Nil(t, nilRouter.Lookup("makehub-sota/family"), "nil router disables routing")
}

func TestResolveRoutesByScore(t *testing.T) {
	completer := &fakeCompleter{output: "85"}
	r := testRouter(completer)

	decision, err := r.Resolve(context.Background(), logger.Logger, 1, "makehub-sota/family", chatRequest("prove the Riemann hypothesis"))
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4", decision.TargetModel)
	assert.Equal(t, 85, decision.Score)
	assert.False(t, decision.Fallback)
}

func TestResolveTolerantScoreParsing(t *testing.T) {
	completer := &fakeCompleter{output: "  Score: 12.\n"}
	r := testRouter(completer)

	decision, err := r.Resolve(context.Background(), logger.Logger, 1, "makehub-sota/family", chatRequest("hello"))
	require.NoError(t, err)
	assert.Equal(t, 12, decision.Score)
	assert.Equal(t, "gpt-4o-mini", decision.TargetModel)
}

func TestResolveCachesDecision(t *testing.T) {
	completer := &fakeCompleter{output: "85"}
	r := testRouter(completer)

	first, err := r.Resolve(context.Background(), logger.Logger, 1, "makehub-sota/family", chatRequest("same prompt"))
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), logger.Logger, 1, "makehub-sota/family", chatRequest("same prompt"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, completer.calls, "second resolve must hit the cache")

	// A different user evaluates independently.
	_, err = r.Resolve(context.Background(), logger.Logger, 2, "makehub-sota/family", chatRequest("same prompt"))
	require.NoError(t, err)
	assert.Equal(t, 2, completer.calls)
}

func TestResolveEvaluatorFailureFallsBack(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("evaluator down")}
	r := testRouter(completer)

	decision, err := r.Resolve(context.Background(), logger.Logger, 1, "makehub-sota/family", chatRequest("hello"))
	require.NoError(t, err)
	assert.True(t, decision.Fallback)
	assert.Equal(t, "gpt-4o", decision.TargetModel)
}

func TestResolveUnparseableOutputFallsBack(t *testing.T) {
	completer := &fakeCompleter{output: "I cannot rate this task."}
	r := testRouter(completer)

	decision, err := r.Resolve(context.Background(), logger.Logger, 1, "makehub-sota/family", chatRequest("hello"))
	require.NoError(t, err)
	assert.True(t, decision.Fallback)
}

func TestResolveUnknownFamily(t *testing.T) {
	r := testRouter(&fakeCompleter{output: "10"})
	_, err := r.Resolve(context.Background(), logger.Logger, 1, "unknown/family", chatRequest("hello"))
	assert.Error(t, err)
}

func TestFallback(t *testing.T) {
	r := testRouter(&fakeCompleter{})

	decision := r.Fallback("makehub-sota/family")
	require.NotNil(t, decision)
	assert.True(t, decision.Fallback)
	assert.Equal(t, "gpt-4o", decision.TargetModel)

	assert.Nil(t, r.Fallback("unknown/family"))
}

func TestParseScore(t *testing.T) {
	cases := []struct {
		in    string
		score int
		ok    bool
	}{
		{"42", 42, true},
		{" 7 ", 7, true},
		{"Score: 99!", 99, true},
		{"1", 1, true},
		{"100", 100, true},
		{"0", 0, false},
		{"101", 0, false},
		{"none", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		score, ok := parseScore(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		if tc.ok {
			assert.Equal(t, tc.score, score, tc.in)
		}
	}
}

func TestFingerprintTruncation(t *testing.T) {
	long := make([]byte, fingerprintLimit*2)
	for i := range long {
		long[i] = 'a'
	}
	base := chatRequest(string(long))
	// Tail edits beyond the fingerprint window reuse the same key.
	edited := chatRequest(string(long) + " trailing edit")
	assert.Equal(t, fingerprint(base), fingerprint(edited))

	different := chatRequest("b" + string(long[1:]))
	assert.NotEqual(t, fingerprint(base), fingerprint(different))
}
