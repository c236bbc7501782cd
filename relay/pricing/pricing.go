// Package pricing holds the per-model rate table and the cost function used
// for billing. Rates are microdollars per one million tokens; costs are
// microdollars. The table is immutable after startup and readable without
// locks.
package pricing

// ModelPrice is one pricing row.
type ModelPrice struct {
	// InputMicros is the price of one million prompt tokens, in microdollars.
	InputMicros int64
	// OutputMicros is the price of one million completion tokens, in microdollars.
	OutputMicros int64
}

// DefaultModel is billed for any model missing from the table. Charging the
// gpt-4o rate for unknown models errs on the side of the operator.
const DefaultModel = "gpt-4o"

// Prices in microdollars per million tokens, i.e. USD-per-million * 1e6.
//
// https://openai.com/api/pricing, https://www.anthropic.com/pricing#api,
// https://ai.google.dev/pricing, https://mistral.ai/technology/#pricing
var prices = map[string]ModelPrice{
	// OpenAI
	"gpt-4o":        {InputMicros: 2_500_000, OutputMicros: 10_000_000},
	"gpt-4o-mini":   {InputMicros: 150_000, OutputMicros: 600_000},
	"gpt-4-turbo":   {InputMicros: 10_000_000, OutputMicros: 30_000_000},
	"gpt-4":         {InputMicros: 30_000_000, OutputMicros: 60_000_000},
	"gpt-3.5-turbo": {InputMicros: 500_000, OutputMicros: 1_500_000},
	"o1":            {InputMicros: 15_000_000, OutputMicros: 60_000_000},
	"o1-mini":       {InputMicros: 3_000_000, OutputMicros: 12_000_000},
	"o3":            {InputMicros: 10_000_000, OutputMicros: 40_000_000},
	"o3-mini":       {InputMicros: 1_100_000, OutputMicros: 4_400_000},
	"o4-mini":       {InputMicros: 1_100_000, OutputMicros: 4_400_000},

	// Anthropic
	"claude-opus-4-20250514":     {InputMicros: 15_000_000, OutputMicros: 75_000_000},
	"claude-sonnet-4-20250514":   {InputMicros: 3_000_000, OutputMicros: 15_000_000},
	"claude-3-7-sonnet-20250219": {InputMicros: 3_000_000, OutputMicros: 15_000_000},
	"claude-3-5-sonnet-20241022": {InputMicros: 3_000_000, OutputMicros: 15_000_000},
	"claude-3-5-haiku-20241022":  {InputMicros: 800_000, OutputMicros: 4_000_000},
	"claude-3-haiku-20240307":    {InputMicros: 250_000, OutputMicros: 1_250_000},

	// Google
	"gemini-2.0-flash": {InputMicros: 100_000, OutputMicros: 400_000},
	"gemini-1.5-pro":   {InputMicros: 1_250_000, OutputMicros: 5_000_000},
	"gemini-1.5-flash": {InputMicros: 75_000, OutputMicros: 300_000},

	// Mistral
	"mistral-large-latest": {InputMicros: 2_000_000, OutputMicros: 6_000_000},
	"mistral-small-latest": {InputMicros: 200_000, OutputMicros: 600_000},
	"codestral-latest":     {InputMicros: 300_000, OutputMicros: 900_000},

	// Together (open-source slugs)
	"meta-llama/Meta-Llama-3.1-70B-Instruct-Turbo": {InputMicros: 880_000, OutputMicros: 880_000},
	"meta-llama/Meta-Llama-3.1-8B-Instruct-Turbo":  {InputMicros: 180_000, OutputMicros: 180_000},
	"mistralai/Mixtral-8x7B-Instruct-v0.1":         {InputMicros: 600_000, OutputMicros: 600_000},
}

const tokensPerPriceUnit = 1_000_000

// GetPrice returns the pricing row for model, falling back to DefaultModel
// for anything unknown.
func GetPrice(model string) ModelPrice {
	if price, ok := prices[model]; ok {
		return price
	}
	return prices[DefaultModel]
}

// Models returns the model ids that have explicit pricing rows.
func Models() []string {
	ids := make([]string, 0, len(prices))
	for id := range prices {
		ids = append(ids, id)
	}
	return ids
}

// Cost computes the charge in microdollars for a usage snapshot, rounding up
// so sub-micro remainders never under-charge. The intermediate product peaks
// around 6e13 for the largest plausible inputs, well inside int64.
//
// Zero tokens cost zero regardless of model.
func Cost(model string, promptTokens int, completionTokens int) int64 {
	if promptTokens < 0 {
		promptTokens = 0
	}
	if completionTokens < 0 {
		completionTokens = 0
	}
	price := GetPrice(model)
	total := int64(promptTokens)*price.InputMicros + int64(completionTokens)*price.OutputMicros
	return (total + tokensPerPriceUnit - 1) / tokensPerPriceUnit
}
