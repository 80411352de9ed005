package payments

import "testing"

func TestFeeSchedule_Calculate(t *testing.T) {
	s := DefaultFeeSchedule()

	tests := []struct {
		name    string
		amount  int64
		connect bool
		want    Fees
	}{
		{
			name:   "five dollars direct",
			amount: 500,
			want:   Fees{Amount: 500, ProcessingFee: 45, NetAmount: 455},
		},
		{
			name:    "five dollars connect",
			amount:  500,
			connect: true,
			want:    Fees{Amount: 500, ProcessingFee: 45, PlatformFee: 25, NetAmount: 430},
		},
		{
			name:    "minimum tip connect",
			amount:  50,
			connect: true,
			want:    Fees{Amount: 50, ProcessingFee: 31, PlatformFee: 3, NetAmount: 16},
		},
		{
			name:   "maximum tip direct",
			amount: 10000,
			want:   Fees{Amount: 10000, ProcessingFee: 320, NetAmount: 9680},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Calculate(tt.amount, tt.connect); got != tt.want {
				t.Errorf("Calculate(%d, %v) = %+v, want %+v", tt.amount, tt.connect, got, tt.want)
			}
		})
	}
}

func TestFeeSchedule_SplitAlwaysSumsToAmount(t *testing.T) {
	s := DefaultFeeSchedule()

	for amount := int64(50); amount <= 10000; amount++ {
		for _, connect := range []bool{false, true} {
			f := s.Calculate(amount, connect)
			if f.NetAmount+f.ProcessingFee+f.PlatformFee != amount {
				t.Fatalf("amount %d connect=%v: split %+v does not sum to amount", amount, connect, f)
			}
			if f.NetAmount < 0 {
				t.Fatalf("amount %d connect=%v: negative net %d", amount, connect, f.NetAmount)
			}
			if !connect && f.PlatformFee != 0 {
				t.Fatalf("amount %d: platform fee %d charged without connect", amount, f.PlatformFee)
			}
		}
	}
}
