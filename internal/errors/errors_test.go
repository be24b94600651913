package errors

import (
	"errors"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err: &AppError{
				Code:    ErrCodeNotFound,
				Message: "job not found",
			},
			want: "job not found",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeInternal,
				Message: "failed to claim job",
				Cause:   errors.New("connection reset"),
			},
			want: "failed to claim job: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(cause, ErrCodeInternal, "wrapped error")

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		wantCode ErrorCode
		wantMsg  string
	}{
		{"NotFound", NotFound("job not found"), ErrCodeNotFound, "job not found"},
		{"NotFoundf", NotFoundf("job %s not found", "abc"), ErrCodeNotFound, "job abc not found"},
		{"Conflict", Conflict("already active"), ErrCodeConflict, "already active"},
		{"Conflictf", Conflictf("cnpj %s already queued", "123"), ErrCodeConflict, "cnpj 123 already queued"},
		{"Validation", Validation("bad input"), ErrCodeValidation, "bad input"},
		{"InvalidTransitionf", InvalidTransitionf("cannot cancel %s job", "completed"), ErrCodeInvalidTransition, "cannot cancel completed job"},
		{"Internal", Internal("boom"), ErrCodeInternal, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.wantCode)
			}
			if tt.err.Message != tt.wantMsg {
				t.Errorf("Message = %v, want %v", tt.err.Message, tt.wantMsg)
			}
		})
	}
}

func TestValidationField(t *testing.T) {
	err := ValidationField("cnpj", "must be 14 digits")
	if err.Field != "cnpj" {
		t.Errorf("Field = %v, want cnpj", err.Field)
	}
	if !IsValidation(err) {
		t.Error("IsValidation() = false, want true")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, ErrCodeInternal, "msg") != nil {
		t.Error("Wrap(nil, ...) should return nil")
	}
	if Wrapf(nil, ErrCodeInternal, "msg %d", 1) != nil {
		t.Error("Wrapf(nil, ...) should return nil")
	}
}

func TestCodePredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
		want bool
	}{
		{"IsNotFound on NotFound", NotFound("x"), IsNotFound, true},
		{"IsNotFound on Conflict", Conflict("x"), IsNotFound, false},
		{"IsConflict on Conflict", Conflict("x"), IsConflict, true},
		{"IsInvalidTransition", InvalidTransitionf("x"), IsInvalidTransition, true},
		{"IsTimeout on plain error", errors.New("x"), IsTimeout, false},
		{"outermost code wins", Wrap(NotFound("x"), ErrCodeInternal, "outer"), IsNotFound, false},
		{"outermost code wins internal", Wrap(NotFound("x"), ErrCodeInternal, "outer"), IsInternal, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pred(tt.err); got != tt.want {
				t.Errorf("predicate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(Conflict("x")); got != ErrCodeConflict {
		t.Errorf("GetCode() = %v, want %v", got, ErrCodeConflict)
	}
	if got := GetCode(errors.New("plain")); got != "" {
		t.Errorf("GetCode(plain) = %v, want empty", got)
	}
}
