package ratefeed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frmon/internal/domain/model"
)

type stubFeed struct {
	mu      sync.Mutex
	watched []string
	push    []*model.FundingRateSample
}

func (f *stubFeed) Name() string { return model.ExchangeBybit }

func (f *stubFeed) Watch(symbols ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watched = append(f.watched, symbols...)
}

func (f *stubFeed) Run(ctx context.Context, emit func(*model.FundingRateSample)) {
	for _, s := range f.push {
		emit(s)
	}
	<-ctx.Done()
}

type stubREST struct {
	calls int
	rate  float64
	err   error
}

func (r *stubREST) Name() string { return model.ExchangeBybit }

func (r *stubREST) GetFundingRate(_ context.Context, symbol string) (*model.FundingRateSample, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &model.FundingRateSample{Exchange: model.ExchangeBybit, Symbol: symbol, Rate: r.rate, FetchedAt: time.Now()}, nil
}

func TestCacheFreshness(t *testing.T) {
	c := NewCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Put(&model.FundingRateSample{Exchange: model.ExchangeBinance, Symbol: "BTCUSDT", Rate: 0.01, FetchedAt: now.Add(-time.Minute)})

	s, ok := c.Get(model.ExchangeBinance, "btcusdt", 2*time.Minute)
	require.True(t, ok)
	assert.Equal(t, 0.01, s.Rate)

	_, ok = c.Get(model.ExchangeBinance, "BTCUSDT", 30*time.Second)
	assert.False(t, ok, "stale sample")

	_, ok = c.Get(model.ExchangeBybit, "BTCUSDT", 0)
	assert.False(t, ok)
}

func TestCacheKeepsNewest(t *testing.T) {
	c := NewCache()
	now := time.Now()
	c.Put(&model.FundingRateSample{Exchange: model.ExchangeBinance, Symbol: "BTCUSDT", Rate: 2, FetchedAt: now})
	c.Put(&model.FundingRateSample{Exchange: model.ExchangeBinance, Symbol: "BTCUSDT", Rate: 1, FetchedAt: now.Add(-time.Second)})

	s, ok := c.Get(model.ExchangeBinance, "BTCUSDT", 0)
	require.True(t, ok)
	assert.Equal(t, 2.0, s.Rate)
	assert.Equal(t, 1, c.Len())
}

func TestSourceFallsBackToREST(t *testing.T) {
	feed := &stubFeed{}
	rest := &stubREST{rate: 0.03}
	src := NewSource(feed, nil, rest, time.Minute)

	s, err := src.GetFundingRate(context.Background(), "ethusdt")
	require.NoError(t, err)
	assert.Equal(t, 0.03, s.Rate)
	assert.Equal(t, 1, rest.calls)
	assert.Equal(t, []string{"ETHUSDT"}, feed.watched)

	// second call is served by the cache
	_, err = src.GetFundingRate(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, 1, rest.calls)
}

func TestSourceUsesStream(t *testing.T) {
	feed := &stubFeed{push: []*model.FundingRateSample{
		{Exchange: model.ExchangeBybit, Symbol: "BTCUSDT", Rate: -0.01, FetchedAt: time.Now()},
	}}
	rest := &stubREST{err: errors.New("should not be called")}
	src := NewSource(feed, nil, rest, time.Minute)

	src.Start(context.Background())
	t.Cleanup(func() { _ = src.Close() })

	require.Eventually(t, func() bool { return src.cache.Len() == 1 }, time.Second, 5*time.Millisecond)

	s, err := src.GetFundingRate(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, -0.01, s.Rate)
	assert.Equal(t, 0, rest.calls)
}

func TestSourceRESTError(t *testing.T) {
	src := NewSource(&stubFeed{}, nil, &stubREST{err: errors.New("boom")}, time.Minute)
	_, err := src.GetFundingRate(context.Background(), "BTCUSDT")
	assert.Error(t, err)
}

func TestSourceCloseWithoutStart(t *testing.T) {
	src := NewSource(&stubFeed{}, nil, &stubREST{}, time.Minute)
	assert.NoError(t, src.Close())
}
