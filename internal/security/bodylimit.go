package security

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/felipedev418/tax-rate-adjustment/internal/common"
)

// DefaultMaxBody caps JSON payloads. Checkout quotes carry whole line lists.
const DefaultMaxBody int64 = 1 << 20

// CodePayloadTooLarge is the error code for rejected bodies.
const CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"

// BodyLimit caps the body of POST, PUT and PATCH requests. Max <= 0 means DefaultMaxBody.
type BodyLimit struct {
	Max int64
}

func (b BodyLimit) max() int64 {
	if b.Max <= 0 {
		return DefaultMaxBody
	}
	return b.Max
}

// Middleware buffers the body up to the limit so oversized payloads are
// refused with 413 before any handler decodes them.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	limit := b.max()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody || !carriesBody(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > limit {
			tooLarge(w, limit)
			return
		}

		buf, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			tooLarge(w, limit)
			return
		case err != nil:
			common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid request body", nil)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(buf))
		r.ContentLength = int64(len(buf))
		next.ServeHTTP(w, r)
	})
}

func carriesBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

func tooLarge(w http.ResponseWriter, limit int64) {
	common.JSONError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "request entity too large", map[string]int64{"maxBytes": limit})
}
