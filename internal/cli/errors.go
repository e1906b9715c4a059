package cli

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"userManagement/internal/db"
	"userManagement/internal/users"
)

const (
	ExitCodeSuccess   = 0
	ExitCodeGeneric   = 1
	ExitCodeUsage     = 2
	ExitCodeNotFound  = 3
	ExitCodeConflict  = 4
	ExitCodeMigration = 5
)

type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *ExitError) ExitCode() int {
	if e == nil {
		return ExitCodeGeneric
	}
	return e.Code
}

func usageErrorf(format string, args ...any) error {
	return &ExitError{Code: ExitCodeUsage, Err: fmt.Errorf(format, args...)}
}

// mapCommandError attaches an exit code to domain errors.
func mapCommandError(err error) error {
	if err == nil {
		return nil
	}
	var withExit interface{ ExitCode() int }
	if errors.As(err, &withExit) {
		return err
	}
	switch {
	case errors.Is(err, users.ErrValidation):
		return &ExitError{Code: ExitCodeUsage, Err: err}
	case errors.Is(err, users.ErrNotFound):
		return &ExitError{Code: ExitCodeNotFound, Err: err}
	case errors.Is(err, users.ErrDuplicateEmail):
		return &ExitError{Code: ExitCodeConflict, Err: err}
	case errors.Is(err, db.ErrSchemaAhead):
		return &ExitError{Code: ExitCodeMigration, Err: err}
	}
	// Errors from a --remote server arrive as gRPC statuses.
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.InvalidArgument, codes.Unauthenticated, codes.PermissionDenied:
			return &ExitError{Code: ExitCodeUsage, Err: err}
		case codes.NotFound:
			return &ExitError{Code: ExitCodeNotFound, Err: err}
		case codes.AlreadyExists:
			return &ExitError{Code: ExitCodeConflict, Err: err}
		}
	}
	return &ExitError{Code: ExitCodeGeneric, Err: err}
}
