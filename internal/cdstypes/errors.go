package cdstypes

// Status is the sealed core's opaque ABI status code. Exact numeric
// values are part of the wire ABI and must never be renumbered once a
// transport depends on them.
type Status uint32

const (
	StatusSuccess Status = 0

	StatusErrInvalidParameter Status = 1 // SGX_ERROR_INVALID_PARAMETER
	StatusErrInvalidState     Status = 2 // SGX_ERROR_INVALID_STATE
	StatusErrUnexpected       Status = 3 // SGX_ERROR_UNEXPECTED

	StatusErrInvalidRequestSize      Status = 100 // CDS_ERROR_INVALID_REQUEST_SIZE
	StatusErrQueryCommitmentMismatch Status = 101 // CDS_ERROR_QUERY_COMMITMENT_MISMATCH
	StatusErrInvalidRateLimitState   Status = 102 // CDS_ERROR_INVALID_RATE_LIMIT_STATE
	StatusErrRateLimitExceeded       Status = 103 // CDS_ERROR_RATE_LIMIT_EXCEEDED
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusErrInvalidParameter:
		return "SGX_ERROR_INVALID_PARAMETER"
	case StatusErrInvalidState:
		return "SGX_ERROR_INVALID_STATE"
	case StatusErrUnexpected:
		return "SGX_ERROR_UNEXPECTED"
	case StatusErrInvalidRequestSize:
		return "CDS_ERROR_INVALID_REQUEST_SIZE"
	case StatusErrQueryCommitmentMismatch:
		return "CDS_ERROR_QUERY_COMMITMENT_MISMATCH"
	case StatusErrInvalidRateLimitState:
		return "CDS_ERROR_INVALID_RATE_LIMIT_STATE"
	case StatusErrRateLimitExceeded:
		return "CDS_ERROR_RATE_LIMIT_EXCEEDED"
	default:
		return "UNKNOWN_STATUS"
	}
}

// Error wraps a Status as a regular Go error, so fallible operations in
// this repo return plain `error` while still letting a transport recover
// the wire status via AsStatus without string matching.
type Error struct {
	Status Status
}

func NewError(s Status) *Error {
	return &Error{Status: s}
}

func (e *Error) Error() string {
	return e.Status.String()
}

// AsStatus extracts the wire status from err, defaulting to
// StatusErrUnexpected for any error this package didn't produce.
func AsStatus(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	if ce, ok := err.(*Error); ok {
		return ce.Status
	}
	return StatusErrUnexpected
}
