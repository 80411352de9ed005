package payments

import "github.com/shopspring/decimal"

type FeeSchedule struct {
	ProcessingRate  decimal.Decimal
	ProcessingFixed int64
	PlatformRate    decimal.Decimal
}

func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		ProcessingRate:  decimal.RequireFromString("0.029"),
		ProcessingFixed: 30,
		PlatformRate:    decimal.RequireFromString("0.05"),
	}
}

// Fees is the split of one tip. NetAmount + ProcessingFee + PlatformFee always
// equals Amount.
type Fees struct {
	Amount        int64
	ProcessingFee int64
	PlatformFee   int64
	NetAmount     int64
}

// Calculate splits amountMinor. The platform fee only applies when the tip is
// routed to a connected account.
func (s FeeSchedule) Calculate(amountMinor int64, connect bool) Fees {
	amount := decimal.NewFromInt(amountMinor)

	processing := amount.Mul(s.ProcessingRate).
		Add(decimal.NewFromInt(s.ProcessingFixed)).
		Round(0).IntPart()

	var platform int64
	if connect {
		platform = amount.Mul(s.PlatformRate).Round(0).IntPart()
	}

	return Fees{
		Amount:        amountMinor,
		ProcessingFee: processing,
		PlatformFee:   platform,
		NetAmount:     amountMinor - processing - platform,
	}
}
