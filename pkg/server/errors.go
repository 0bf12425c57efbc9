package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jiayi-1994/zstack-macpool/pkg/allocator"
	"github.com/jiayi-1994/zstack-macpool/pkg/macrange"
)

// errBadRequest marks malformed requests.
var errBadRequest = errors.New("bad request")

// PoolNotFoundError indicates that no allocator is registered under a name.
type PoolNotFoundError struct {
	Pool string
}

func (e *PoolNotFoundError) Error() string {
	return fmt.Sprintf("MAC pool %s not found", e.Pool)
}

// StatusError is returned by Client when the server answers with an error.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("macpool server error (%d): %s", e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 answer from the server.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// IsConflict reports whether err is a 409 answer from the server.
func IsConflict(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusConflict
}

// statusCode maps a handler error to an HTTP status code.
func statusCode(err error) int {
	var (
		exhausted *allocator.PoolExhaustedError
		allocated *allocator.MACAlreadyAllocatedError
		excluded  *allocator.MACExcludedError
		outOfPool *allocator.MACOutOfRangeError
		notFound  *PoolNotFoundError
		retired   *allocator.PoolRetiredError
	)

	switch {
	case errors.Is(err, errBadRequest), macrange.IsParseError(err):
		return http.StatusBadRequest
	case errors.As(err, &exhausted), errors.As(err, &allocated), errors.As(err, &excluded):
		return http.StatusConflict
	case errors.As(err, &notFound), errors.As(err, &outOfPool):
		return http.StatusNotFound
	case errors.As(err, &retired):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
