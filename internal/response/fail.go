package response

import (
	"errors"
	"net/http"

	"github.com/tolet/service/internal/validate"
)

// Fail maps a service error that is not a not-found case onto a response:
// client input errors are 400, oversized bodies 413, everything else 500.
func Fail(w http.ResponseWriter, err error) {
	var verr *validate.Error
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &verr):
		BadRequest(w, verr.Message)
	case errors.As(err, &mbe):
		Error(w, http.StatusRequestEntityTooLarge, "request body too large")
	default:
		InternalError(w, err)
	}
}
