package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalculator_Calculate(t *testing.T) {
	calc := NewCalculator()

	tests := []struct {
		name           string
		original       string
		cfg            Config
		wantValid      bool
		wantAmount     string
		wantDiscounted string
	}{
		{
			name:           "percentage",
			original:       "100.00",
			cfg:            Config{Type: TypePercentage, Value: dec("15")},
			wantValid:      true,
			wantAmount:     "15",
			wantDiscounted: "85",
		},
		{
			name:           "fixed",
			original:       "50.00",
			cfg:            Config{Type: TypeFixed, Value: dec("5")},
			wantValid:      true,
			wantAmount:     "5",
			wantDiscounted: "45",
		},
		{
			name:           "fixed larger than price clamps to price",
			original:       "3.00",
			cfg:            Config{Type: TypeFixed, Value: dec("5")},
			wantValid:      true,
			wantAmount:     "3",
			wantDiscounted: "0",
		},
		{
			name:           "max discount caps amount",
			original:       "200.00",
			cfg:            Config{Type: TypePercentage, Value: dec("50"), MaxDiscount: dec("30")},
			wantValid:      true,
			wantAmount:     "30",
			wantDiscounted: "170",
		},
		{name: "zero original rejected", original: "0", cfg: Config{Type: TypeFixed, Value: dec("5")}},
		{name: "zero value rejected", original: "100", cfg: Config{Type: TypeFixed, Value: dec("0")}},
		{name: "negative value rejected", original: "100", cfg: Config{Type: TypePercentage, Value: dec("-10")}},
		{name: "percentage above 100 rejected", original: "100", cfg: Config{Type: TypePercentage, Value: dec("120")}},
		{name: "unknown type rejected", original: "100", cfg: Config{Type: "bogo", Value: dec("10")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Calculate(dec(tt.original), tt.cfg, Context{})
			assert.Equal(t, tt.wantValid, got.Valid)
			if !tt.wantValid {
				assert.NotEmpty(t, got.Errors)
				return
			}
			assert.True(t, got.DiscountAmount.Equal(dec(tt.wantAmount)),
				"amount: got %s want %s", got.DiscountAmount, tt.wantAmount)
			assert.True(t, got.DiscountedPrice.Equal(dec(tt.wantDiscounted)),
				"discounted: got %s want %s", got.DiscountedPrice, tt.wantDiscounted)
		})
	}
}
