package strategy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tenorarb/internal/domain"
)

// resolvingVenue serves each condition as open until it has been polled
// more than after[cond] times, then as closed with winner[cond].
type resolvingVenue struct {
	mu         sync.Mutex
	calls      map[string]int
	after      map[string]int
	failures   map[string]int
	winner     map[string]string
	twoWinners bool
}

func newResolvingVenue() *resolvingVenue {
	return &resolvingVenue{
		calls:    make(map[string]int),
		after:    make(map[string]int),
		failures: make(map[string]int),
		winner:   map[string]string{"c15": "Up", "c5": "Down"},
	}
}

func (v *resolvingVenue) MarketBySlug(context.Context, string) (*domain.Market, error) {
	return nil, domain.ErrNotFound
}

func (v *resolvingVenue) BookBestPrices(context.Context, string) (domain.Quote, error) {
	return domain.Quote{}, domain.ErrNoQuote
}

func (v *resolvingVenue) MarketByConditionID(_ context.Context, cond string) (*domain.Market, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls[cond]++
	if v.calls[cond] <= v.failures[cond] {
		return nil, errors.New("gateway timeout")
	}
	m := &domain.Market{
		ConditionID: cond,
		Tokens: []domain.Token{
			{ID: cond + "-up", Outcome: "Up"},
			{ID: cond + "-down", Outcome: "Down"},
		},
	}
	if v.calls[cond] > v.after[cond] {
		m.Closed = true
		for i := range m.Tokens {
			m.Tokens[i].Winner = v.twoWinners || m.Tokens[i].Outcome == v.winner[cond]
		}
	}
	return m, nil
}

func (v *resolvingVenue) polled(cond string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls[cond]
}

func TestResolverDefaults(t *testing.T) {
	r := NewResolver(newResolvingVenue(), clockAt(time.Now()), discard(), 0, 0, 0)
	require.Equal(t, 60*time.Second, r.initialDelay)
	require.Equal(t, 30*time.Second, r.pollInterval)
	require.Equal(t, 600*time.Second, r.maxWait)
}

func clockAt(at time.Time) *fakeClock { return newFakeClock(at) }

func TestResolverAwaitWinners(t *testing.T) {
	venue := newResolvingVenue()
	venue.after["c15"] = 2 // resolves on the third poll
	start := time.Unix(1_700_000_000, 0)
	clk := clockAt(start)

	r := NewResolver(venue, clk, discard(),
		60*time.Second, 30*time.Second, 600*time.Second)
	win15, win5, ok, err := r.AwaitWinners(context.Background(), "c15", "c5")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Up", win15.Outcome)
	require.Equal(t, "c15-up", win15.ID)
	require.Equal(t, "Down", win5.Outcome)
	require.Equal(t, "c5-down", win5.ID)

	// Initial delay plus two poll intervals of fake time elapsed.
	require.Equal(t, start.Add(120*time.Second), clk.Now())
	// The already-resolved condition is not refetched on later polls.
	require.Equal(t, 1, venue.polled("c5"))
	require.Equal(t, 3, venue.polled("c15"))
}

func TestResolverTimesOut(t *testing.T) {
	venue := newResolvingVenue()
	venue.after["c15"] = 1 << 30
	venue.after["c5"] = 1 << 30
	start := time.Unix(1_700_000_000, 0)
	clk := clockAt(start)

	r := NewResolver(venue, clk, discard(),
		60*time.Second, 30*time.Second, 600*time.Second)
	_, _, ok, err := r.AwaitWinners(context.Background(), "c15", "c5")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, start.Add(660*time.Second), clk.Now())
}

func TestResolverToleratesVenueErrors(t *testing.T) {
	venue := newResolvingVenue()
	venue.failures["c15"] = 2
	clk := clockAt(time.Unix(1_700_000_000, 0))

	r := NewResolver(venue, clk, discard(),
		time.Second, time.Second, 10*time.Second)
	win15, _, ok, err := r.AwaitWinners(context.Background(), "c15", "c5")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Up", win15.Outcome)
	require.Equal(t, 3, venue.polled("c15"))
}

func TestResolverRejectsAmbiguousWinner(t *testing.T) {
	venue := newResolvingVenue()
	venue.twoWinners = true
	clk := clockAt(time.Unix(1_700_000_000, 0))

	r := NewResolver(venue, clk, discard(), time.Second, time.Second, 3*time.Second)
	_, _, ok, err := r.AwaitWinners(context.Background(), "c15", "c5")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestResolverCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewResolver(newResolvingVenue(), clockAt(time.Now()), discard(),
		time.Second, time.Second, 3*time.Second)
	_, _, ok, err := r.AwaitWinners(ctx, "c15", "c5")
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, ok)
}
