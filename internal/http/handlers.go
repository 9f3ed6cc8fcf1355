package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"bugetar/internal/core"
	applog "bugetar/internal/log"
)

// handleClassifications serves GET /api/v1/classifications: the aggregated
// classification report with normalization, thresholds and pagination.
func (s *Server) handleClassifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowedError(http.MethodGet).Write(w, r)
		return
	}

	query := r.URL.Query()

	filter, err := ParseReportFilter(query)
	if err != nil {
		BadRequestError(err.Error()).Write(w, r)
		return
	}
	norm, err := ParseNormalization(query)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w, r)
		return
	}
	page, err := ParsePagination(query)
	if err != nil {
		BadRequestError(err.Error()).Write(w, r)
		return
	}

	// Deadline the pipeline so a stuck store turns into a typed timeout
	// failure instead of an open connection.
	ctx := r.Context()
	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	connection, err := s.aggregator.AggregateClassifications(ctx, filter, norm, page)
	if err != nil {
		s.writeAggregationError(w, r, err)
		return
	}

	NewJSONResponse().Body(connection).Write(w, r)
}

// writeAggregationError maps typed pipeline failures onto status codes. The
// client can distinguish a slow store from missing normalization data.
func (s *Server) writeAggregationError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var timeoutErr *core.TimeoutError
	if errors.As(err, &timeoutErr) {
		slog.ErrorContext(ctx, "Aggregation timed out",
			applog.FieldError, err, applog.FieldOperation, timeoutErr.Op)
		ErrorResponse(http.StatusGatewayTimeout, "aggregation timed out").Write(w, r)
		return
	}

	var dataErr *core.NormalizationDataError
	if errors.As(err, &dataErr) {
		slog.ErrorContext(ctx, "Normalization data unavailable", applog.FieldError, err)
		ErrorResponse(http.StatusBadGateway, "normalization data unavailable").Write(w, r)
		return
	}

	var dbErr *core.DatabaseError
	if errors.As(err, &dbErr) {
		slog.ErrorContext(ctx, "Aggregation storage failure",
			applog.FieldError, err, applog.FieldOperation, dbErr.Op)
		InternalServerError("storage failure").Write(w, r)
		return
	}

	// Validation failures surface as plain errors from the service.
	slog.WarnContext(ctx, "Aggregation request rejected", applog.FieldError, err)
	UnprocessableEntityError(err.Error()).Write(w, r)
}
