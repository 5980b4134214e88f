package errors

import "net/http"

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes shared by every layer.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
)

// Query resolution error codes.
const (
	// ErrCodeEmptyQuery marks a request whose query text is blank after
	// normalization.
	ErrCodeEmptyQuery ErrorCode = "QRY_001"

	// ErrCodeInvalidFieldMapping marks a concept that resolved to no known
	// field code even after grouped-term expansion and explicit-override
	// fallback.  The request proceeds without that concept; the result is
	// annotated as partial.
	ErrCodeInvalidFieldMapping ErrorCode = "QRY_002"
)

// Routing / classification error codes.
const (
	// ErrCodeOutOfScope marks a query that no classifier layer could place
	// above its confidence floor.  The error carries the best sub-floor
	// candidates as hints; the router never guesses an endpoint.
	ErrCodeOutOfScope ErrorCode = "RTE_001"

	// ErrCodeUnknownEndpoint marks an explicit endpoint override that names
	// an endpoint absent from the active catalog snapshot.
	ErrCodeUnknownEndpoint ErrorCode = "RTE_002"
)

// Execution error codes.
const (
	// ErrCodeEndpointUnavailable marks a single endpoint call that exhausted
	// its retry budget.  Recovered locally; the batch proceeds degraded.
	ErrCodeEndpointUnavailable ErrorCode = "EXE_001"

	// ErrCodeAllEndpointsFailed marks a batch in which every selected
	// endpoint failed.  Fatal for the request; never retried at this layer.
	ErrCodeAllEndpointsFailed ErrorCode = "EXE_002"

	// ErrCodeCircuitOpen marks a call short-circuited by an open breaker.
	ErrCodeCircuitOpen ErrorCode = "EXE_003"

	// ErrCodeMalformedResponse marks an endpoint body that could not be
	// decoded into the analysis response contract.
	ErrCodeMalformedResponse ErrorCode = "EXE_004"
)

// Merge error codes.
const (
	// ErrCodeMergeKeyMismatch marks a multi-endpoint batch in which no two
	// endpoint result sets share a geographic key.  The error carries the
	// unmerged per-endpoint sets so the caller can fall back to a
	// side-by-side presentation.
	ErrCodeMergeKeyMismatch ErrorCode = "MRG_001"

	// ErrCodeNoGeoID marks an endpoint record set in which no configured
	// candidate id field yielded a geographic key for any record.
	ErrCodeNoGeoID ErrorCode = "MRG_002"
)

// Cache error codes.
const (
	// ErrCodeCacheBuildFailed marks a builder invocation that failed; the
	// failure is fanned out to every waiter attached to the fingerprint.
	ErrCodeCacheBuildFailed ErrorCode = "CCH_001"
)

// Registry error codes.
const (
	// ErrCodeSnapshotInvalid marks a registry document that failed
	// validation.  The active snapshot is kept; the reload is discarded.
	ErrCodeSnapshotInvalid ErrorCode = "REG_001"
)

// Aliases kept for call-site brevity.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeTimeout      = ErrCodeTimeout
	CodeUnknown      = ErrorCode("UNKNOWN")
	CodeOK           = ErrorCode("OK")
)

// httpStatusByCode maps error codes to the HTTP status the REST layer emits.
// Codes absent from the map fall through to 500.
var httpStatusByCode = map[ErrorCode]int{
	ErrCodeBadRequest:          http.StatusBadRequest,
	ErrCodeValidation:          http.StatusBadRequest,
	ErrCodeEmptyQuery:          http.StatusBadRequest,
	ErrCodeUnknownEndpoint:     http.StatusBadRequest,
	ErrCodeUnauthorized:        http.StatusUnauthorized,
	ErrCodeForbidden:           http.StatusForbidden,
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeTooManyRequests:     http.StatusTooManyRequests,
	ErrCodeOutOfScope:          http.StatusUnprocessableEntity,
	ErrCodeTimeout:             http.StatusGatewayTimeout,
	ErrCodeServiceUnavailable:  http.StatusServiceUnavailable,
	ErrCodeAllEndpointsFailed:  http.StatusBadGateway,
	ErrCodeEndpointUnavailable: http.StatusBadGateway,
}

// HTTPStatus returns the HTTP status code associated with c.
func (c ErrorCode) HTTPStatus() int {
	if status, ok := httpStatusByCode[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}
