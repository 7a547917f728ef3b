package statement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/backend-invoicing/internal/booking"
	"github.com/noah-isme/backend-invoicing/internal/obs"
)

// ErrTooManyBookings is returned when a request carries more bookings than the service accepts.
var ErrTooManyBookings = errors.New("statement: too many bookings")

// ServiceConfig configures the Service dependencies.
type ServiceConfig struct {
	Logger zerolog.Logger
	// MaxBookings caps the input size; zero or less disables the cap.
	MaxBookings int
}

// Service runs Calculate with logging, metrics and tracing around it.
type Service struct {
	logger      zerolog.Logger
	maxBookings int
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{logger: cfg.Logger, maxBookings: cfg.MaxBookings}
}

// Evaluate aggregates the bookings of recipientID.
func (s *Service) Evaluate(ctx context.Context, bookings []*booking.Booking, recipientID int64) (Totals, error) {
	ctx, span := otel.Tracer("statement.Service").Start(ctx, "statement.calculate")
	defer span.End()

	start := time.Now()
	result := "error"
	var totals Totals
	defer func() {
		span.SetAttributes(
			attribute.Int64("statement.recipient_id", recipientID),
			attribute.Int("statement.bookings", len(bookings)),
			attribute.Int("statement.matched", totals.Matched()),
			attribute.String("statement.result", result),
			attribute.Float64("statement.duration_ms", obs.DurationMillis(time.Since(start))),
		)
		if obs.StatementCalculationsTotal != nil {
			obs.StatementCalculationsTotal.WithLabelValues(result).Inc()
		}
	}()

	if s.maxBookings > 0 && len(bookings) > s.maxBookings {
		result = "rejected"
		err := fmt.Errorf("%w: got %d, limit %d", ErrTooManyBookings, len(bookings), s.maxBookings)
		span.SetStatus(codes.Error, err.Error())
		return Totals{}, err
	}

	logger := s.loggerFor(ctx)
	totals, err := Calculate(bookings, recipientID)
	if err != nil {
		var mismatch *InconsistentCurrenciesError
		if errors.As(err, &mismatch) {
			result = "currency_inconsistent"
			logger.Warn().
				Int64("recipient_id", recipientID).
				Int64("booking_id", mismatch.BookingID).
				Str("currency", mismatch.First).
				Str("other_currency", mismatch.Second).
				Msg("statement_currency_inconsistent")
		} else {
			result = "invalid"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		return Totals{}, err
	}

	result = "ok"
	if totals.Matched() == 0 {
		result = "empty"
	}
	if obs.StatementMatchedBookings != nil {
		obs.StatementMatchedBookings.Observe(float64(totals.Matched()))
	}
	logger.Debug().
		Int64("recipient_id", recipientID).
		Int("matched", totals.Matched()).
		Str("currency", totals.Currency()).
		Msg("statement_calculated")
	return totals, nil
}

func (s *Service) loggerFor(ctx context.Context) *zerolog.Logger {
	logger := s.logger
	if ctxLogger := zerolog.Ctx(ctx); ctxLogger.GetLevel() != zerolog.Disabled {
		logger = *ctxLogger
	}
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		logger = logger.With().Str("trace_id", spanCtx.TraceID().String()).Logger()
	}
	return &logger
}
