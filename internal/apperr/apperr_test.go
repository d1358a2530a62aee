package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"bare sentinel", ErrNotFound, KindNotFound},
		{"wrapped", fmt.Errorf("%w: order abc", ErrInvalidState), KindInvalidState},
		{"double wrapped", fmt.Errorf("save: %w", fmt.Errorf("%w: stale version", ErrConcurrentModification)), KindConcurrentModification},
		{"foreign error", errors.New("connection refused"), KindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Errorf("KindOf() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRetryableOnlyForConcurrentModification(t *testing.T) {
	for _, s := range sentinels {
		err := fmt.Errorf("%w: detail", s)
		want := s == ErrConcurrentModification
		if got := Retryable(err); got != want {
			t.Errorf("Retryable(%s) = %v, want %v", s.kind, got, want)
		}
	}
}
