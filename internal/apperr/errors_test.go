package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKnown(t *testing.T) {
	tests := map[string]struct {
		err  error
		want bool
	}{
		"sentinel":     {ErrConflict, true},
		"path error":   {&PathError{Path: "a.md", Err: ErrNotFound}, true},
		"wrapped":      {fmt.Errorf("daily: %w", ErrTemplate), true},
		"host failure": {errors.New("open /srv/vault/a.md: permission denied"), false},
		"cancelled":    {context.Canceled, false},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := Known(tt.err); got != tt.want {
				t.Errorf("Known(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
