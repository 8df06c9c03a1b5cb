package endpoints

import (
	"context"
	"errors"

	"hostdash/internal/domain"
)

const (
	API_SUCCESS      = iota + 303000 // 303000
	API_FAILURE                      // 303001 - Generic API failure
	API_UNAUTHORIZED                 // 303002 - Authentication/Authorization failure
)

const (
	UNKNOWN_CATEGORY    = iota + 101 // 101 - Category is not one of the stored series
	MALFORMED_TIMESTAMP              // 102 - recorded_after is not YYYY-MM-DDTHH:MM:SS
	STORE_UNAVAILABLE                // 103 - Persistence layer failed
	REQUEST_CANCELLED                // 104 - Request was cancelled by client or server timeout
	METHOD_NOT_ALLOWED               // 105 - Only GET is served
)

var (
	ErrRequestCancelled  = errors.New("request cancelled by client or server timeout")
	ErrMethodNotAllowed  = errors.New("method Not Allowed. Only GET requests are supported")
	ErrInternal          = errors.New("internal error while retrieving data")
	errRetrievePrefixMsg = "failed to retrieve data: "
)

func GetErrorCode(err error) int {
	if err == nil {
		return API_SUCCESS
	}

	switch {
	case errors.Is(err, domain.ErrUnknownCategory):
		return UNKNOWN_CATEGORY
	case errors.Is(err, domain.ErrMalformedTimestamp):
		return MALFORMED_TIMESTAMP
	case errors.Is(err, domain.ErrStoreUnavailable):
		return STORE_UNAVAILABLE
	case errors.Is(err, ErrRequestCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return REQUEST_CANCELLED
	case errors.Is(err, ErrMethodNotAllowed):
		return METHOD_NOT_ALLOWED
	default:
		return API_FAILURE // Default for any unhandled error
	}
}
