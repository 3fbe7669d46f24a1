package types

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestMoneyDisplay(t *testing.T) {
	tests := []struct {
		name    string
		money   Money
		display string
	}{
		{"one eth", ETH(1_000_000_000), "1.00 ETH"},
		{"fractional eth", ETH(1_500_000_000), "1.50 ETH"},
		{"dust", ETH(1), "0.000000001 ETH"},
		{"fee of five days", ETH(250_000_000), "0.25 ETH"},
		{"usd", USD(4900), "$49.00"},
		{"zero usd", Zero("USD"), "$0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.money.String(); got != tt.display {
				t.Errorf("got %s, want %s", got, tt.display)
			}
		})
	}
}

func TestMoneyPercent(t *testing.T) {
	tests := []struct {
		name  string
		price Money
		pct   int64
		want  int64
	}{
		{"default fee", ETH(5_000_000_000), 5, 250_000_000},
		{"floors", ETH(19), 5, 0},
		{"floors odd", ETH(101), 10, 10},
		{"zero pct", ETH(1000), 0, 0},
		{"full", ETH(1000), 100, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.price.Percent(tt.pct); got.Amount != tt.want {
				t.Errorf("got %d, want %d", got.Amount, tt.want)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Money
		expected Money
	}{
		{"Add", func() Money { return ETH(100).Add(ETH(200)) }, ETH(300)},
		{"Subtract", func() Money { return ETH(500).Subtract(ETH(200)) }, ETH(300)},
		{"Multiply", func() Money { return ETH(100).Multiply(3) }, ETH(300)},
		{"Sum", func() Money { return Sum("eth", ETH(1), ETH(2), ETH(3)) }, ETH(6)},
		{"Sum empty", func() Money { return Sum("eth") }, Zero("eth")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op(); !got.Equal(tt.expected) {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMoneyCurrencyMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on currency mismatch")
		}
	}()
	_ = ETH(1).Add(USD(1))
}

func TestMoneyMultiplyExact(t *testing.T) {
	tests := []struct {
		name    string
		money   Money
		qty     int64
		want    int64
		wantErr bool
	}{
		{"small", ETH(1_000_000_000), 5, 5_000_000_000, false},
		{"zero qty", ETH(math.MaxInt64), 0, 0, false},
		{"at the limit", ETH(math.MaxInt64), 1, math.MaxInt64, false},
		{"half max times four", ETH(math.MaxInt64 / 2), 4, 0, true},
		{"max times two", ETH(math.MaxInt64), 2, 0, true},
		{"negative overflow", ETH(math.MinInt64), 2, 0, true},
		{"min times minus one", ETH(math.MinInt64), -1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.money.MultiplyExact(tt.qty)
			if tt.wantErr {
				if !errors.Is(err, ErrOverflow) {
					t.Fatalf("got %v, %v; want ErrOverflow", got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Amount != tt.want {
				t.Errorf("got %d, want %d", got.Amount, tt.want)
			}
		})
	}
}

func TestMoneyMixedCaseCurrency(t *testing.T) {
	upper := Money{Amount: 100, Currency: "ETH"}

	if !upper.SameCurrency(ETH(1)) {
		t.Fatal("ETH and eth should be the same currency")
	}
	if got := upper.Add(ETH(50)); got != ETH(150) {
		t.Errorf("Add = %#v, want %#v", got, ETH(150))
	}
	if got := ETH(150).Subtract(upper); got != ETH(50) {
		t.Errorf("Subtract = %#v, want %#v", got, ETH(50))
	}
	if !upper.LessThan(ETH(101)) || upper.GreaterThan(ETH(100)) {
		t.Error("comparison across case mismatched")
	}
	if !upper.Equal(ETH(100)) {
		t.Error("Equal should ignore currency case")
	}
	if got := upper.Normalize(); got.Currency != "eth" {
		t.Errorf("Normalize currency = %q, want eth", got.Currency)
	}
	if got := (Money{Amount: 4900, Currency: "USD"}).String(); got != "$49.00" {
		t.Errorf("String = %s, want $49.00", got)
	}
}

func TestParseMajor(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1", 1_000_000_000, false},
		{"0.25", 250_000_000, false},
		{" 2.000000001 ", 2_000_000_001, false},
		{"0.0000000001", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMajor(tt.in, "ETH")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Amount != tt.want || got.Currency != "eth" {
				t.Errorf("got %v, want %d eth", got, tt.want)
			}
		})
	}
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(ETH(1_000_000_000))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"amount":1000000000,"currency":"eth","display":"1.00 ETH"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}

	var back Money
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(ETH(1_000_000_000)) {
		t.Errorf("got %v", back)
	}
}
