package routes

import (
	"errors"
	"net/http"

	"github.com/endomorphosis/kgraph/pkg/common"
)

// statusForError maps the error taxonomy onto HTTP status codes: bad
// arguments are the caller's fault, lookup misses are 404, integrity
// failures on import are 422, and everything else is a server error.
func statusForError(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrEntityNotFound), errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrContentMismatch), errors.Is(err, common.ErrCorruptArchive):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
