package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidSignal        ErrorCode = 102
	ErrCodeInvalidPrice         ErrorCode = 103
	ErrCodeInvalidQuantity      ErrorCode = 104
	ErrCodeInvalidInterval      ErrorCode = 105

	// Data errors (200-299)
	ErrCodeDataNotFound          ErrorCode = 200
	ErrCodeDataSourceUnavailable ErrorCode = 201
	ErrCodeQueryFailed           ErrorCode = 202
	ErrCodePriceUnavailable      ErrorCode = 203

	// Strategy errors (300-399)
	ErrCodeStrategyNotLoaded ErrorCode = 300
	ErrCodeStrategyPanicked  ErrorCode = 301

	// Engine errors (400-499)
	ErrCodeEngineInitFailed   ErrorCode = 400
	ErrCodeEngineNoSymbols    ErrorCode = 401
	ErrCodeEngineNoStrategy   ErrorCode = 402
	ErrCodeEngineNoDataSource ErrorCode = 403

	// Persistence errors (500-599)
	ErrCodeSnapshotReadFailed  ErrorCode = 500
	ErrCodeSnapshotWriteFailed ErrorCode = 501
	ErrCodeSnapshotCorrupt     ErrorCode = 502

	// Notification errors (600-699)
	ErrCodeNotifyFailed ErrorCode = 600
)
