package chainsync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TEENet-io/bridge-verifier/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedOracle struct {
	tip   atomic.Uint64
	err   error
	calls atomic.Int32
}

func (o *fixedOracle) TipHeight(ctx context.Context) (uint64, error) {
	o.calls.Add(1)
	return o.tip.Load(), o.err
}

type memHandled map[string]*state.HandledBlock

func (m memHandled) GetHandledBlock(chain string) (*state.HandledBlock, bool, error) {
	hb, ok := m[chain]
	return hb, ok, nil
}

func TestCheck(t *testing.T) {
	ckbOracle := &fixedOracle{}
	ckbOracle.tip.Store(1000)
	handled := memHandled{"ckb": {Height: 980}}

	sc := NewSyncChecker(handled, time.Second, map[string]*ChainConfig{
		"ckb": {Oracle: ckbOracle, Threshold: 20},
		"eth": {Oracle: &fixedOracle{err: errors.New("down")}, Threshold: 20},
	})
	ctx := context.Background()

	st, err := sc.Check(ctx, "ckb")
	require.NoError(t, err)
	assert.True(t, st.Synced)
	assert.Equal(t, uint64(1000), st.Tip)

	ckbOracle.tip.Store(1001)
	st, err = sc.Check(ctx, "ckb")
	require.NoError(t, err)
	assert.False(t, st.Synced)

	// handled ahead of the oracle is fine
	handled["ckb"] = &state.HandledBlock{Height: 2000}
	st, err = sc.Check(ctx, "ckb")
	require.NoError(t, err)
	assert.True(t, st.Synced)

	_, err = sc.Check(ctx, "eth")
	assert.Error(t, err)

	st, err = sc.Check(ctx, "btc")
	require.NoError(t, err)
	assert.True(t, st.Synced)

	// nothing handled yet
	delete(handled, "ckb")
	st, err = sc.Check(ctx, "ckb")
	require.NoError(t, err)
	assert.False(t, st.Synced)
}

func TestLoopCachesTips(t *testing.T) {
	oracle := &fixedOracle{}
	oracle.tip.Store(50)
	sc := NewSyncChecker(memHandled{"ckb": {Height: 50}}, 10*time.Millisecond, map[string]*ChainConfig{
		"ckb": {Oracle: oracle, Threshold: 0},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- sc.Loop(ctx) }()

	require.Eventually(t, func() bool {
		sc.mu.RLock()
		defer sc.mu.RUnlock()
		return sc.tips["ckb"] == 50
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	before := oracle.calls.Load()
	st, err := sc.Check(context.Background(), "ckb")
	require.NoError(t, err)
	assert.True(t, st.Synced)
	assert.Equal(t, before, oracle.calls.Load())
}
