package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salestats/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func date(month time.Month, day int) time.Time {
	return time.Date(2022, month, day, 10, 30, 0, 0, time.UTC)
}

func fixture() []core.Transaction {
	return []core.Transaction{
		{ID: 1, Title: "Fjallraven Backpack", Price: 50, Description: "Fits 15 inch laptops", Category: "men's clothing", Sold: true, DateOfSale: date(time.March, 2)},
		{ID: 2, Title: "Slim Fit T-Shirt", Price: 150, Description: "Casual cotton tee", Category: "men's clothing", Sold: true, DateOfSale: date(time.March, 10)},
		{ID: 3, Title: "Gold Bracelet", Price: 950, Description: "Dragon station chain", Category: "jewelery", Sold: false, DateOfSale: date(time.March, 20)},
		{ID: 4, Title: "WD 2TB Drive", Price: 64, Description: "USB 3.0 portable BACKUP", Category: "electronics", Sold: false, DateOfSale: date(time.July, 4)},
		{ID: 5, Title: "Rain Jacket", Price: 39.99, Description: "Lightweight", Category: "women's clothing", Image: "https://example.com/5.jpg", Sold: true, DateOfSale: date(time.July, 15)},
	}
}

func TestReplaceAllAndAll(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.ReplaceAll(ctx, fixture()))

	got, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, fixture()[4], got[4])
	assert.True(t, got[0].DateOfSale.Equal(date(time.March, 2)))
}

func TestReplaceAllIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.ReplaceAll(ctx, fixture()))
	first, err := repo.All(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.ReplaceAll(ctx, fixture()))
	second, err := repo.All(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestReplaceAllRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.ReplaceAll(ctx, fixture()))

	dup := []core.Transaction{fixture()[0], fixture()[0]}
	require.Error(t, repo.ReplaceAll(ctx, dup))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.ReplaceAll(ctx, fixture()))

	tests := []struct {
		name  string
		query core.ListQuery
		ids   []int64
	}{
		{"defaults return everything", core.ListQuery{}, []int64{1, 2, 3, 4, 5}},
		{"numeric search matches price exactly", core.ListQuery{Search: "150"}, []int64{2}},
		{"decimal price", core.ListQuery{Search: " 39.99 "}, []int64{5}},
		{"numeric search does not match text", core.ListQuery{Search: "15"}, []int64{}},
		{"title is case-insensitive", core.ListQuery{Search: "BACKPACK"}, []int64{1}},
		{"description matches", core.ListQuery{Search: "backup"}, []int64{4}},
		{"no match", core.ListQuery{Search: "submarine"}, []int64{}},
		{"month filter", core.ListQuery{Month: "July"}, []int64{4, 5}},
		{"unknown month", core.ListQuery{Month: "Smarch"}, []int64{}},
		{"lowercase month is unknown", core.ListQuery{Month: "march"}, []int64{}},
		{"search and month", core.ListQuery{Search: "clothing", Month: "March"}, []int64{}},
		{"search text within month", core.ListQuery{Search: "t", Month: "July"}, []int64{4, 5}},
		{"second page", core.ListQuery{Page: 2, PerPage: 2}, []int64{3, 4}},
		{"page past the end", core.ListQuery{Page: 9, PerPage: 2}, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Search(ctx, tt.query)
			require.NoError(t, err)
			ids := []int64{}
			for _, tx := range got {
				ids = append(ids, tx.ID)
			}
			assert.Equal(t, tt.ids, ids)
		})
	}
}

func TestSearchFoldsNonASCIICase(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	txs := []core.Transaction{
		{ID: 1, Title: "Élan Jacket", Price: 80, Description: "Wool blend", Category: "women's clothing", DateOfSale: date(time.March, 2)},
		{ID: 2, Title: "Straw Hat", Price: 20, Description: "Woven in ÇANAKKALE", Category: "accessories", DateOfSale: date(time.March, 3)},
	}
	require.NoError(t, repo.ReplaceAll(ctx, txs))

	tests := []struct {
		search string
		ids    []int64
	}{
		{"élan", []int64{1}},
		{"ÉLAN", []int64{1}},
		{"Élan", []int64{1}},
		{"çanakkale", []int64{2}},
		{"elan", []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			got, err := repo.Search(ctx, core.ListQuery{Search: tt.search})
			require.NoError(t, err)
			ids := []int64{}
			for _, tx := range got {
				ids = append(ids, tx.ID)
			}
			assert.Equal(t, tt.ids, ids)
		})
	}
}

func TestSearchFiltersMonthBeforePaging(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.ReplaceAll(ctx, fixture()))

	// Records 1-3 are March; with a page size of 2 the July records must
	// still fill page one.
	got, err := repo.Search(ctx, core.ListQuery{Month: "July", Page: 1, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(4), got[0].ID)
	assert.Equal(t, int64(5), got[1].ID)
}

func TestPingAndEmptyCount(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.Ping(ctx))
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
