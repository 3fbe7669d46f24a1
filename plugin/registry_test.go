package plugin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/rental/listing"
	"github.com/xraph/rental/payout"
	"github.com/xraph/rental/types"
)

type recorder struct {
	name   string
	listed int
	sent   []types.Money
	fail   error
	block  bool
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) OnListed(context.Context, *listing.Listing) error {
	r.listed++
	return r.fail
}

func (r *recorder) OnFundsSent(_ context.Context, t *payout.Transfer) error {
	if r.block {
		time.Sleep(time.Second)
	}
	r.sent = append(r.sent, t.Amount)
	return nil
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&recorder{name: "a"}))
	assert.Error(t, r.Register(&recorder{name: "a"}))
	assert.Equal(t, 1, r.Count())
	assert.NotNil(t, r.Get("a"))
	assert.Nil(t, r.Get("b"))
}

func TestImplementedInterfaces(t *testing.T) {
	got := implementedInterfaces(&recorder{})
	assert.Equal(t, []string{"OnListed", "OnFundsSent"}, got)
}

func TestEmitContinuesPastFailures(t *testing.T) {
	r := NewRegistry()
	first := &recorder{name: "first", fail: errors.New("boom")}
	second := &recorder{name: "second"}
	require.NoError(t, r.Register(first))
	require.NoError(t, r.Register(second))

	r.EmitListed(context.Background(), &listing.Listing{})

	assert.Equal(t, 1, first.listed)
	assert.Equal(t, 1, second.listed)
}

func TestEmitTimesOut(t *testing.T) {
	r := NewRegistry().WithTimeout(10 * time.Millisecond)
	slow := &recorder{name: "slow", block: true}
	require.NoError(t, r.Register(slow))

	start := time.Now()
	r.EmitFundsSent(context.Background(), &payout.Transfer{Amount: types.ETH(1)})
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
