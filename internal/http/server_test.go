package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salestats/internal/core"
	"salestats/internal/log"
	"salestats/internal/seed"
	"salestats/internal/services"
	"salestats/internal/storage"
)

const seedPayload = `[
  {"id":1,"title":"Fjallraven Backpack","price":50,"description":"Fits 15 inch laptops","category":"men's clothing","image":"https://example.com/1.jpg","sold":true,"dateOfSale":"2022-03-01T10:00:00Z"},
  {"id":2,"title":"Slim Fit T-Shirt","price":150,"description":"Casual cotton tee","category":"men's clothing","image":"https://example.com/2.jpg","sold":true,"dateOfSale":"2022-03-10T10:00:00Z"},
  {"id":3,"title":"Gold Bracelet","price":950,"description":"Dragon station chain","category":"jewelery","image":"https://example.com/3.jpg","sold":false,"dateOfSale":"2022-03-20T10:00:00Z"},
  {"id":4,"title":"WD 2TB Drive","price":64,"description":"USB 3.0 portable backup","category":"electronics","image":"https://example.com/4.jpg","sold":false,"dateOfSale":"2021-07-04T10:00:00Z"}
]`

func testLogger() *log.Logger {
	return log.New(log.Config{Level: slog.LevelError, Component: "test", Output: io.Discard})
}

type testEnv struct {
	server    *Server
	seedCalls *atomic.Int64
	seedFail  *atomic.Bool
}

func newTestEnv(t *testing.T, rateLimit int) testEnv {
	t.Helper()

	var calls atomic.Int64
	var fail atomic.Bool
	seedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if fail.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, seedPayload)
	}))
	t.Cleanup(seedSrv.Close)

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "salestats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	logger := testLogger()
	loader := seed.NewLoader(seedSrv.Client(), seedSrv.URL, logger)
	svc := services.NewProductService(repo, loader, services.Options{Logger: logger})
	srv := NewServer(":0", svc, Options{Logger: logger, RateLimitPerMinute: rateLimit})
	t.Cleanup(srv.limiter.Stop)

	return testEnv{server: srv, seedCalls: &calls, seedFail: &fail}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestProductAPIEndToEnd(t *testing.T) {
	env := newTestEnv(t, 1000)
	h := env.server.Handler

	rec := get(t, h, "/product/initialize")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Database initialized with seed data.", rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	t.Run("statistics", func(t *testing.T) {
		rec := get(t, h, "/product/statistics?month=March")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"totalSaleAmount":1150,"totalSoldItems":2,"totalNotSoldItems":1}`, rec.Body.String())

		rec = get(t, h, "/product/statistics?month=Smarch")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"totalSaleAmount":0,"totalSoldItems":0,"totalNotSoldItems":0}`, rec.Body.String())
	})

	t.Run("barchart", func(t *testing.T) {
		rec := get(t, h, "/product/barchart?month=March")
		require.Equal(t, http.StatusOK, rec.Code)

		var chart core.BarChart
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chart))
		require.Len(t, chart.Data, 10)
		counts := map[string]int{}
		for _, b := range chart.Data {
			counts[b.Range] = b.Count
		}
		assert.Equal(t, 1, counts["0-100"])
		assert.Equal(t, 1, counts["101-200"])
		assert.Equal(t, 1, counts["901-above"])
		assert.Equal(t, 0, counts["501-600"])

		rec = get(t, h, "/product/barchart?month=April")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"message":"No transactions found for the specified month."}`, rec.Body.String())
	})

	t.Run("piechart counts the whole collection", func(t *testing.T) {
		rec := get(t, h, "/product/piechart?month=July")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[
			{"category":"men's clothing","count":2},
			{"category":"jewelery","count":1},
			{"category":"electronics","count":1}
		]`, rec.Body.String())

		rec = get(t, h, "/product/piechart?month=December")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("transactions", func(t *testing.T) {
		ids := func(target string) []int64 {
			rec := get(t, h, target)
			require.Equal(t, http.StatusOK, rec.Code)
			var txs []core.Transaction
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
			out := []int64{}
			for _, tx := range txs {
				out = append(out, tx.ID)
			}
			return out
		}

		assert.Equal(t, []int64{1, 2, 3, 4}, ids("/product/transactions"))
		assert.Equal(t, []int64{2}, ids("/product/transactions?search=150"))
		assert.Equal(t, []int64{4}, ids("/product/transactions?search=BACKUP"))
		assert.Equal(t, []int64{3}, ids("/product/transactions?month=March&page=2&perPage=2"))
		assert.Equal(t, []int64{4}, ids("/product/transactions?month=July&perPage=1"))
		assert.Equal(t, []int64{}, ids("/product/transactions?month=march"))

		rec := get(t, h, "/product/transactions?search=150")
		assert.Contains(t, rec.Body.String(), `"dateOfSale":"2022-03-10T10:00:00Z"`)
	})

	t.Run("combined", func(t *testing.T) {
		rec := get(t, h, "/product/combined?month=March")
		require.Equal(t, http.StatusOK, rec.Code)

		var combined map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &combined))
		assert.JSONEq(t, `{"totalSaleAmount":1150,"totalSoldItems":2,"totalNotSoldItems":1}`, string(combined["statistics"]))
		assert.Contains(t, string(combined["barChart"]), `"barChartData"`)
		assert.Contains(t, string(combined["pieChart"]), `"jewelery"`)

		rec = get(t, h, "/product/combined?month=April")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Error fetching combined data.", rec.Body.String())
	})

	t.Run("operations", func(t *testing.T) {
		rec := get(t, h, "/healthz")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

		rec = get(t, h, "/readyz")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ready","records":4}`, rec.Body.String())

		rec = get(t, h, "/metrics")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "salestats_seeds_total 1\n")
		assert.Contains(t, rec.Body.String(), "salestats_http_requests_total")
	})
}

func TestInitializeIsIdempotent(t *testing.T) {
	env := newTestEnv(t, 1000)
	h := env.server.Handler

	require.Equal(t, http.StatusOK, get(t, h, "/product/initialize").Code)
	first := get(t, h, "/product/transactions?perPage=100").Body.String()

	require.Equal(t, http.StatusOK, get(t, h, "/product/initialize").Code)
	second := get(t, h, "/product/transactions?perPage=100").Body.String()

	assert.JSONEq(t, first, second)
	assert.JSONEq(t, `{"status":"ready","records":4}`, get(t, h, "/readyz").Body.String())
	assert.Equal(t, int64(2), env.seedCalls.Load())
}

func TestInitializeFailureKeepsPreviousData(t *testing.T) {
	env := newTestEnv(t, 1000)
	h := env.server.Handler

	require.Equal(t, http.StatusOK, get(t, h, "/product/initialize").Code)

	env.seedFail.Store(true)
	rec := get(t, h, "/product/initialize")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error initializing database.", rec.Body.String())

	assert.JSONEq(t, `{"status":"ready","records":4}`, get(t, h, "/readyz").Body.String())
}

func TestEmptyStore(t *testing.T) {
	env := newTestEnv(t, 1000)
	h := env.server.Handler

	rec := get(t, h, "/product/transactions")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, get(t, h, "/product/barchart?month=March").Code)
	assert.JSONEq(t, `{"status":"ready","records":0}`, get(t, h, "/readyz").Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, 1000)

	rec := httptest.NewRecorder()
	env.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/product/initialize", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRateLimitAppliesToProductRoutes(t *testing.T) {
	env := newTestEnv(t, 1)
	h := env.server.Handler

	assert.Equal(t, http.StatusOK, get(t, h, "/product/statistics?month=March").Code)
	rec := get(t, h, "/product/statistics?month=March")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "Rate limit exceeded.")
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)
}

func TestWriteTimeoutOutlastsSeedTimeout(t *testing.T) {
	tests := []struct {
		name string
		seed time.Duration
		want time.Duration
	}{
		{"unset", 0, 60 * time.Second},
		{"short seed timeout", 30 * time.Second, 60 * time.Second},
		{"long seed timeout", 10 * time.Minute, 10*time.Minute + 15*time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(":0", failingService{}, Options{Logger: testLogger(), SeedTimeout: tt.seed})
			t.Cleanup(srv.limiter.Stop)
			assert.Equal(t, tt.want, srv.WriteTimeout)
			assert.Greater(t, srv.WriteTimeout, tt.seed)
		})
	}
}

type failingService struct {
	err error
}

func (f failingService) Initialize(context.Context) (int, error) { return 0, f.err }
func (f failingService) Transactions(context.Context, core.ListQuery) ([]core.Transaction, error) {
	return nil, f.err
}
func (f failingService) Statistics(context.Context, string) (core.Statistics, error) {
	return core.Statistics{}, f.err
}
func (f failingService) BarChart(context.Context, string) (core.BarChart, error) {
	return core.BarChart{}, f.err
}
func (f failingService) PieChart(context.Context, string) ([]core.CategoryCount, error) {
	return nil, f.err
}
func (f failingService) Combined(context.Context, string) (core.Combined, error) {
	return core.Combined{}, f.err
}
func (f failingService) Ready(context.Context) (int, error) { return 0, f.err }
func (f failingService) Stats() services.Stats { return services.Stats{} }

func TestStoreFailures(t *testing.T) {
	srv := NewServer(":0", failingService{err: errors.New("database is locked")}, Options{Logger: testLogger()})
	t.Cleanup(srv.limiter.Stop)
	h := srv.Handler

	tests := []struct {
		target string
		json   bool
		body   string
	}{
		{"/product/initialize", false, "Error initializing database."},
		{"/product/transactions", false, "Error fetching transactions"},
		{"/product/statistics?month=March", false, "Error fetching statistics."},
		{"/product/barchart?month=March", true, `{"message":"Error fetching bar chart data.","error":"database is locked"}`},
		{"/product/piechart?month=March", true, `{"message":"Error fetching pie chart data.","error":"database is locked"}`},
		{"/product/combined?month=March", false, "Error fetching combined data."},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(t, h, tt.target)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			if tt.json {
				assert.JSONEq(t, tt.body, rec.Body.String())
			} else {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}

	rec := get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
