package ports

import "errors"

// Standard application-level errors.
// Adapters and core packages wrap underlying errors with these sentinels so
// callers can branch with errors.Is without importing adapter packages.
var (
	// General errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Data-quality errors: the candle series is unusable for the requested
	// operation. Simulation runs abort on these rather than interpolating.
	ErrDataQuality         = errors.New("candle series failed data-quality checks")
	ErrNonMonotonicSeries  = errors.New("candle timestamps are not strictly increasing")
	ErrSeriesGap           = errors.New("gap in candle series exceeds tolerance")
	ErrInsufficientHistory = errors.New("not enough candles for the requested calculation")

	// Programming-error class: a validated invariant was violated inside the
	// lifecycle engine. Never handled as a runtime condition.
	ErrInvariantViolation = errors.New("position ladder invariant violated")

	// Optimizer outcomes
	ErrNoEligiblePreset = errors.New("no preset passed all acceptance gates")

	// Exchange errors
	ErrExchangeUnavailable  = errors.New("exchange API is unavailable")
	ErrConnectionFailed     = errors.New("failed to connect to the exchange")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("exchange authentication failed (check API keys)")

	// Database errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")
)
