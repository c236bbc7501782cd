package controller

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/often-ai/gateway/relay/pricing"
	"github.com/often-ai/gateway/relay/provider"
)

type modelInfo struct {
	Id       string       `json:"id"`
	Provider string       `json:"provider"`
	Pricing  modelPricing `json:"pricing"`
}

type modelPricing struct {
	InputPerMillionTokensUsd  float64 `json:"input_per_million_tokens_usd"`
	OutputPerMillionTokensUsd float64 `json:"output_per_million_tokens_usd"`
}

const microsPerUsd = 1_000_000

// ListModels serves GET /v1/models: every model with an explicit pricing row,
// annotated with its routed provider and USD rates.
func ListModels(c *gin.Context) {
	ids := pricing.Models()
	sort.Strings(ids)

	models := make([]modelInfo, 0, len(ids))
	for _, id := range ids {
		price := pricing.GetPrice(id)
		models = append(models, modelInfo{
			Id:       id,
			Provider: provider.Route(id),
			Pricing: modelPricing{
				InputPerMillionTokensUsd:  float64(price.InputMicros) / microsPerUsd,
				OutputPerMillionTokensUsd: float64(price.OutputMicros) / microsPerUsd,
			},
		})
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}
