package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tenorarb/internal/discovery"
	"github.com/alanyoungcy/tenorarb/internal/domain"
	"github.com/alanyoungcy/tenorarb/internal/feed"
)

type idleRefStream struct{}

func (idleRefStream) Run(ctx context.Context, _ chan<- domain.ReferenceTick) error {
	<-ctx.Done()
	return ctx.Err()
}

// aliasSymbol makes the harness venue and cache serve a second symbol
// backed by the same markets.
func aliasSymbol(h *machineHarness, symbol string) {
	h.venue.mu.Lock()
	m15 := h.venue.bySlug[discovery.BuildSlug("btc", domain.Tenor15m, h.p15.Unix())]
	m5 := h.venue.bySlug[discovery.BuildSlug("btc", domain.Tenor5m, h.p5.Unix())]
	h.venue.bySlug[discovery.BuildSlug(symbol, domain.Tenor15m, h.p15.Unix())] = m15
	h.venue.bySlug[discovery.BuildSlug(symbol, domain.Tenor5m, h.p5.Unix())] = m5
	h.venue.mu.Unlock()
	h.cache.PutReference(symbol, domain.Tenor15m, h.p15.Unix(), 97000)
	h.cache.PutReference(symbol, domain.Tenor5m, h.p5.Unix(), 97004)
}

func TestPnLLedger(t *testing.T) {
	l := NewPnLLedger()
	require.Zero(t, l.Total())
	require.Zero(t, l.Trades())

	l.Add(10.8, 1)
	l.Add(-4.3, 2)
	require.InDelta(t, 6.5, l.Total(), 1e-9)
	require.Equal(t, 3, l.Trades())
}

func TestOrchestratorSiblingsSurviveFatal(t *testing.T) {
	// Machine A trades a simulated round to completion.
	hA := newMachineHarness()
	hA.resolve("Up", "Down")
	mA := hA.build(defaultMachineConfig())

	// Machine B hits the venue without credentials and dies.
	hB := newMachineHarness()
	hB.resolve("Up", "Down")
	aliasSymbol(hB, "eth")
	cfgB := defaultMachineConfig()
	cfgB.Symbol = "eth"
	cfgB.SimulationMode = false
	hB.gateway.fail = func(int, domain.OrderRequest) error { return domain.ErrNotConfigured }
	mB := hB.build(cfgB)

	refFeed := feed.NewReferenceFeed(idleRefStream{}, feed.NewCache(), nil, discard())
	o := NewOrchestrator(Settings{
		Symbols:        []string{"btc", "eth"},
		SumThreshold:   0.99,
		Shares:         10,
		TradeInterval:  10 * time.Minute,
		SimulationMode: false,
		AutoRedeem:     true,
	}, []*Machine{mA, mB}, refFeed, hA.ledger, hA.clk, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	// The dead sibling must not stop the healthy one.
	require.Eventually(t, func() bool { return hA.ledger.Total() != 0 },
		5*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return hB.gateway.count() >= 2 },
		5*time.Second, 5*time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("orchestrator stopped early: %v", err)
	default:
	}

	require.InDelta(t, 10.8, o.CumulativePnL(), 1e-9)
	require.Equal(t, 1, o.TradeCount())

	status := o.Status()
	require.Len(t, status, 2)
	require.Equal(t, "btc", status[0].Symbol)
	require.Equal(t, "eth", status[1].Symbol)
	require.NotEmpty(t, status[0].State)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("orchestrator did not stop")
	}
}
