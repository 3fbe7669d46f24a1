package earning

import (
	"testing"
	"time"

	"github.com/xraph/rental/types"
)

func TestRedeemableAt(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tests := []struct {
		name string
		e    Earning
		want bool
	}{
		{"due", Earning{RedeemableDate: now}, true},
		{"past due", Earning{RedeemableDate: now.Add(-time.Hour)}, true},
		{"future", Earning{RedeemableDate: now.Add(time.Second)}, false},
		{"redeemed", Earning{RedeemableDate: now, Redeemed: true}, false},
		{"cancelled", Earning{RedeemableDate: now, Cancelled: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.e.RedeemableAt(now); got != tt.want {
				t.Errorf("RedeemableAt = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	entries := []*Earning{
		{Amount: types.ETH(10), RedeemableDate: now.Add(-time.Hour)},
		{Amount: types.ETH(20), RedeemableDate: now.Add(time.Hour)},
		{Amount: types.ETH(30), RedeemableDate: now, Redeemed: true},
		{Amount: types.ETH(40), RedeemableDate: now, Cancelled: true},
		{Amount: types.ETH(5), RedeemableDate: now},
	}

	s := Summarize("eth", entries, now)
	if s.Available.Amount != 15 {
		t.Errorf("Available = %d, want 15", s.Available.Amount)
	}
	if s.Upcoming.Amount != 20 {
		t.Errorf("Upcoming = %d, want 20", s.Upcoming.Amount)
	}
	if s.Redeemed.Amount != 30 || s.Cancelled.Amount != 40 {
		t.Errorf("Redeemed/Cancelled = %d/%d, want 30/40", s.Redeemed.Amount, s.Cancelled.Amount)
	}
	if s.Entries != 5 {
		t.Errorf("Entries = %d, want 5", s.Entries)
	}
}
