package internal

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestSQLiteStore_UpsertAndLoad(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.UpsertPortfolio(ctx, samplePortfolio()))

	p, err := store.LoadPortfolio(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, samplePortfolio(), p)
}

func TestSQLiteStore_UpsertReplacesPositions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.UpsertPortfolio(ctx, samplePortfolio()))

	updated := &Portfolio{
		ID:        "P1",
		Name:      "income",
		Positions: []Position{{Symbol: "VTI", Quantity: 3, CurrentValue: 30, CostBasis: 25}},
	}
	require.NoError(t, store.UpsertPortfolio(ctx, updated))

	p, err := store.LoadPortfolio(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, updated, p)
}

func TestSQLiteStore_LoadMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.LoadPortfolio(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrPortfolioNotFound)
}

func TestSQLiteStore_EmptyPortfolio(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.UpsertPortfolio(ctx, &Portfolio{ID: "P2"}))

	p, err := store.LoadPortfolio(ctx, "P2")
	require.NoError(t, err)
	assert.Empty(t, p.Positions)
}

func TestSQLiteStore_LoadAllPortfolios(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.UpsertPortfolio(ctx, samplePortfolio()))
	require.NoError(t, store.UpsertPortfolio(ctx, &Portfolio{ID: "P2", Name: "empty"}))

	all, err := store.LoadAllPortfolios(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Len(t, all["P1"].Positions, 2)
	assert.Equal(t, "empty", all["P2"].Name)
}

func TestSQLiteStore_BacksService(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.UpsertPortfolio(ctx, samplePortfolio()))

	svc := NewPortfolioService(store, NewCache(), newTestLogger())
	m, err := svc.CalculatePerformance(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 50.0, m.PnL)

	_, err = svc.GetPortfolio(ctx, "missing")
	assert.ErrorIs(t, err, ErrPortfolioNotFound)
}

func TestOpenStore_SQLite(t *testing.T) {
	store, err := OpenStore(context.Background(), &Config{DBDriver: DriverSQLite, DBDSN: ":memory:"})
	require.NoError(t, err)
	defer store.Close()

	assert.NoError(t, store.Ping(context.Background()))
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), &Config{DBDriver: "mysql", DBDSN: "x"})
	assert.Error(t, err)
}

func TestSQLiteStore_LoadPairsNameWithPositions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	versions := []*Portfolio{
		{ID: "P1", Name: "a", Positions: []Position{{Symbol: "a", CurrentValue: 1, CostBasis: 1}}},
		{ID: "P1", Name: "b", Positions: []Position{
			{Symbol: "b", CurrentValue: 2, CostBasis: 2},
			{Symbol: "b", CurrentValue: 3, CostBasis: 3},
		}},
	}
	require.NoError(t, store.UpsertPortfolio(ctx, versions[0]))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			assert.NoError(t, store.UpsertPortfolio(ctx, versions[i%2]))
		}
	}()

	for i := 0; i < 50; i++ {
		p, err := store.LoadPortfolio(ctx, "P1")
		require.NoError(t, err)
		wantLen := 1
		if p.Name == "b" {
			wantLen = 2
		}
		require.Len(t, p.Positions, wantLen)
		for _, pos := range p.Positions {
			assert.Equal(t, p.Name, pos.Symbol)
		}
	}
	wg.Wait()

	all, err := store.LoadAllPortfolios(ctx)
	require.NoError(t, err)
	assert.Equal(t, versions[1], all["P1"])
}
