package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("user_id is required"), http.StatusBadRequest},
		{"not found", NotFound("Product"), http.StatusNotFound},
		{"already reviewed", AlreadyReviewed(), http.StatusBadRequest},
		{"purchase required", PurchaseRequired(), http.StatusForbidden},
		{"already favorited", AlreadyFavorited(), http.StatusBadRequest},
		{"transaction", Transaction("Failed to place order", errors.New("boom")), http.StatusInternalServerError},
		{"rate limited", RateLimited(), http.StatusTooManyRequests},
		{"conflict", Conflict("key reused"), http.StatusConflict},
		{"foreign", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("outer: %w", PurchaseRequired()), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestErrorsIsMatchesKindSentinel(t *testing.T) {
	cause := errors.New("connection reset")
	err := Transaction("Failed to submit review", cause)

	assert.True(t, errors.Is(err, ErrTransaction))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(AlreadyReviewed(), ErrAlreadyReviewed))
}

func TestPublicMessageHidesCause(t *testing.T) {
	err := Transaction("Failed to place order", errors.New("pq: deadlock detected"))

	assert.Equal(t, "Failed to place order", PublicMessage(err, "fallback"))
	assert.Equal(t, "fallback", PublicMessage(errors.New("raw"), "fallback"))
	assert.Equal(t, KindInternal, KindOf(errors.New("raw")))
	assert.Equal(t, KindTransaction, KindOf(err))
}
