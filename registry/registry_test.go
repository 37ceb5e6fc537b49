package registry

import (
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makehub/llm-gateway/model"
)

func testRows() []*model.Model {
	return []*model.Model{
		{Id: 1, ModelId: "gpt-4o", Provider: "openai", AdapterType: model.AdapterOpenAI, Active: true},
		{Id: 2, ModelId: "gpt-4o", Provider: "azure", ProviderModelId: "gpt4o-prod", AdapterType: model.AdapterAzureOpenAI, Active: true},
		{Id: 3, ModelId: "claude-sonnet-4", Provider: "anthropic", AdapterType: model.AdapterAnthropic, Active: true},
	}
}

func TestRefreshIndexesBothIds(t *testing.T) {
	reg := NewWithLoader(func() ([]*model.Model, error) { return testRows(), nil })
	require.NoError(t, reg.Refresh())

	byModelId := reg.LookupExact("gpt-4o")
	require.Len(t, byModelId, 2)
	assert.Equal(t, "openai", byModelId[0].Provider)
	assert.Equal(t, "azure", byModelId[1].Provider)

	byProviderModelId := reg.LookupExact("gpt4o-prod")
	require.Len(t, byProviderModelId, 1)
	assert.Equal(t, "azure", byProviderModelId[0].Provider)

	assert.Empty(t, reg.LookupExact("unknown-model"))
	assert.Len(t, reg.ListActive(), 3)
}

func TestRefreshFailureKeepsPriorSnapshot(t *testing.T) {
	calls := 0
	reg := NewWithLoader(func() ([]*model.Model, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("database down")
		}
		return testRows(), nil
	})
	require.NoError(t, reg.Refresh())
	require.Len(t, reg.LookupExact("gpt-4o"), 2)

	err := reg.Refresh()
	require.Error(t, err)
	assert.Len(t, reg.LookupExact("gpt-4o"), 2, "previous snapshot must stay live")
}

func TestSnapshotAge(t *testing.T) {
	reg := NewWithLoader(func() ([]*model.Model, error) { return nil, nil })
	assert.Greater(t, reg.SnapshotAge(), time.Hour, "never-refreshed registry reports very old")

	require.NoError(t, reg.Refresh())
	assert.Less(t, reg.SnapshotAge(), time.Minute)
}
