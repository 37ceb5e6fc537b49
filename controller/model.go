package controller

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/makehub/llm-gateway/model"
	"github.com/makehub/llm-gateway/registry"
)

// CatalogEntry is one model in the public catalog, aggregating every provider
// able to serve it.
type CatalogEntry struct {
	ModelId            string            `json:"model_id"`
	ContextWindow      int               `json:"context_window"`
	SupportToolCalling bool              `json:"support_tool_calling"`
	SupportVision      bool              `json:"support_vision"`
	Providers          []CatalogProvider `json:"providers"`
}

type CatalogProvider struct {
	Provider            string   `json:"provider"`
	AdapterType         string   `json:"adapter_type"`
	PricePerInputToken  float64  `json:"price_per_input_token"`
	PricePerOutputToken float64  `json:"price_per_output_token"`
	PricePerCachedToken *float64 `json:"price_per_cached_token,omitempty"`
}

// ListModels is the GET /v1/chat/models handler. Rows sharing a model_id merge
// into one entry; capability flags take the strongest value across providers
// and the context window the largest.
func ListModels(c *gin.Context) {
	rows := registry.Default.ListActive()

	byId := make(map[string]*CatalogEntry)
	var order []string
	for _, row := range rows {
		entry, ok := byId[row.ModelId]
		if !ok {
			entry = &CatalogEntry{ModelId: row.ModelId}
			byId[row.ModelId] = entry
			order = append(order, row.ModelId)
		}
		entry.Providers = append(entry.Providers, catalogProvider(row))
		if row.ContextWindow > entry.ContextWindow {
			entry.ContextWindow = row.ContextWindow
		}
		entry.SupportToolCalling = entry.SupportToolCalling || row.SupportToolCalling
		entry.SupportVision = entry.SupportVision || row.SupportVision
	}

	sort.Strings(order)
	data := make([]*CatalogEntry, 0, len(order))
	for _, id := range order {
		data = append(data, byId[id])
	}

	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   data,
	})
}

func catalogProvider(row *model.Model) CatalogProvider {
	return CatalogProvider{
		Provider:            row.Provider,
		AdapterType:         row.AdapterType,
		PricePerInputToken:  row.PricePerInputToken,
		PricePerOutputToken: row.PricePerOutputToken,
		PricePerCachedToken: row.PricePerCachedToken,
	}
}
