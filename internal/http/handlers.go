package http

import (
	"context"
	"errors"
	"net/http"

	"salestats/internal/core"
	"salestats/internal/log"
	"salestats/internal/services"
)

const (
	msgInitialized       = "Database initialized with seed data."
	msgInitializeFailed  = "Error initializing database."
	msgTransactionsError = "Error fetching transactions"
	msgStatisticsError   = "Error fetching statistics."
	msgNotFound          = "No transactions found for the specified month."
	msgBarChartError     = "Error fetching bar chart data."
	msgPieChartError     = "Error fetching pie chart data."
	msgCombinedError     = "Error fetching combined data."
)

// ProductService is what the handlers need from the service layer.
type ProductService interface {
	Initialize(ctx context.Context) (int, error)
	Transactions(ctx context.Context, q core.ListQuery) ([]core.Transaction, error)
	Statistics(ctx context.Context, month string) (core.Statistics, error)
	BarChart(ctx context.Context, month string) (core.BarChart, error)
	PieChart(ctx context.Context, month string) ([]core.CategoryCount, error)
	Combined(ctx context.Context, month string) (core.Combined, error)
	Ready(ctx context.Context) (int, error)
	Stats() services.Stats
}

func (s *Server) logError(r *http.Request, msg, operation string, err error, fields log.LogFields) {
	errorType := log.ErrorTypeInternal
	switch {
	case errors.Is(err, core.ErrNoTransactions):
		errorType = log.ErrorTypeNotFound
	case errors.Is(err, context.DeadlineExceeded):
		errorType = log.ErrorTypeTimeout
	}
	if fields == nil {
		fields = log.NewFields()
	}
	logger := log.NewStructuredLogger(log.FromContext(r.Context()))
	logger.LogError(r.Context(), msg, err, log.ComponentProduct, operation, fields.WithErrorType(errorType))
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	n, err := s.products.Initialize(r.Context())
	if err != nil {
		s.logError(r, "Failed to initialize database", log.OpInitialize, err, nil)
		TextError(http.StatusInternalServerError, msgInitializeFailed).Write(w)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Database initialized",
		log.FieldOperation, log.OpInitialize,
		log.FieldRecords, n)
	NewResponse().Text(msgInitialized).Write(w)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	q := ParseListQuery(r.URL.Query())

	txs, err := s.products.Transactions(r.Context(), q)
	if err != nil {
		s.logError(r, "Failed to list transactions", log.OpList, err,
			log.NewFields().WithListQuery(q.Search, q.Page, q.PerPage, q.Month))
		TextError(http.StatusInternalServerError, msgTransactionsError).Write(w)
		return
	}

	NewResponse().JSON(txs).Write(w)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	month := ParseMonthParam(r.URL.Query())

	stats, err := s.products.Statistics(r.Context(), month)
	if err != nil {
		s.logError(r, "Failed to compute statistics", log.OpStatistics, err, log.NewFields().WithMonth(month))
		TextError(http.StatusInternalServerError, msgStatisticsError).Write(w)
		return
	}

	NewResponse().JSON(stats).Write(w)
}

func (s *Server) handleBarChart(w http.ResponseWriter, r *http.Request) {
	month := ParseMonthParam(r.URL.Query())

	chart, err := s.products.BarChart(r.Context(), month)
	if err != nil {
		if services.IsNotFound(err) {
			JSONError(http.StatusNotFound, msgNotFound, nil).Write(w)
			return
		}
		s.logError(r, "Failed to compute bar chart", log.OpBarChart, err, log.NewFields().WithMonth(month))
		JSONError(http.StatusInternalServerError, msgBarChartError, err).Write(w)
		return
	}

	NewResponse().JSON(chart).Write(w)
}

func (s *Server) handlePieChart(w http.ResponseWriter, r *http.Request) {
	month := ParseMonthParam(r.URL.Query())

	pie, err := s.products.PieChart(r.Context(), month)
	if err != nil {
		if services.IsNotFound(err) {
			JSONError(http.StatusNotFound, msgNotFound, nil).Write(w)
			return
		}
		s.logError(r, "Failed to compute pie chart", log.OpPieChart, err, log.NewFields().WithMonth(month))
		JSONError(http.StatusInternalServerError, msgPieChartError, err).Write(w)
		return
	}

	NewResponse().JSON(pie).Write(w)
}

// handleCombined fails as a whole when any view fails, a month without
// records included.
func (s *Server) handleCombined(w http.ResponseWriter, r *http.Request) {
	month := ParseMonthParam(r.URL.Query())

	combined, err := s.products.Combined(r.Context(), month)
	if err != nil {
		s.logError(r, "Failed to compute combined data", log.OpCombined, err, log.NewFields().WithMonth(month))
		TextError(http.StatusInternalServerError, msgCombinedError).Write(w)
		return
	}

	NewResponse().JSON(combined).Write(w)
}
