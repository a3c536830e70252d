package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"retrieval-agent/internal/application/port/output"
	"retrieval-agent/internal/domain/entity"
	"retrieval-agent/internal/infrastructure/currency"
)

var _ output.ToolPort = (*CurrencyConvertTool)(nil)

type CurrencyConvertTool struct {
	rates  currency.Converter
	logger output.LoggerPort
}

func NewCurrencyConvertTool(rates currency.Converter, logger output.LoggerPort) *CurrencyConvertTool {
	return &CurrencyConvertTool{rates: rates, logger: logger}
}

func (t *CurrencyConvertTool) Name() string { return entity.ToolCurrencyConvert.String() }
func (t *CurrencyConvertTool) Description() string {
	return "Converts an amount between currencies using the latest reference rates"
}
func (t *CurrencyConvertTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"amount": map[string]any{
				"type":        "number",
				"description": "Amount to convert",
			},
			"from": map[string]any{
				"type":        "string",
				"description": "ISO 4217 source currency, e.g. USD",
			},
			"to": map[string]any{
				"type":        "string",
				"description": "ISO 4217 target currency, e.g. EUR",
			},
		},
		"required": []string{"amount", "from", "to"},
	}
}

func (t *CurrencyConvertTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		Amount float64 `json:"amount"`
		From   string  `json:"from"`
		To     string  `json:"to"`
	}
	if err := json.Unmarshal([]byte(args), &input); err != nil {
		return "", err
	}

	quote, err := t.rates.Rate(ctx, input.From, input.To)
	if err != nil {
		return "", err
	}
	t.logger.Debug("Converted currency", "from", quote.From, "to", quote.To, "rate", quote.Rate)

	return fmt.Sprintf("%.2f %s = %.2f %s (rate %.4f, %s)",
		input.Amount, quote.From, input.Amount*quote.Rate, quote.To, quote.Rate, quote.Date), nil
}
