package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/carga-pendencia/cnpj-queue/internal/errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil error", err: nil, want: ""},
		{
			name: "validation code",
			err:  apperrors.Validation("cnpj must contain between 8 and 14 digits"),
			want: "validation",
		},
		{
			name: "wrapped coded error keeps the code",
			err:  fmt.Errorf("cancel job: %w", apperrors.InvalidTransitionf("job is already completed")),
			want: "invalid_transition",
		},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: "timeout"},
		{
			name: "wrapped cancellation",
			err:  fmt.Errorf("consume dispatch: %w", context.Canceled),
			want: "canceled",
		},
		{
			name: "plain error falls back to type name",
			err:  goerrors.New("portal timeout"),
			want: "errors_errorstring",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
