package grpcserver

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"userManagement/internal/users"
)

// statusError maps service errors to gRPC statuses. Unknown errors are
// logged and reported as Internal without detail.
func statusError(logger *zap.Logger, op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var verr *users.ValidationError
	switch {
	case errors.As(err, &verr):
		return invalidArgument(verr)
	case errors.Is(err, users.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, users.ErrDuplicateEmail):
		return status.Error(codes.AlreadyExists, "email already exists")
	case errors.Is(err, users.ErrNotFound):
		return status.Error(codes.NotFound, "user not found")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}
	logger.Error("request failed", zap.String("op", op), zap.Error(err))
	return status.Errorf(codes.Internal, "%s failed", op)
}

func invalidArgument(verr *users.ValidationError) error {
	st := status.New(codes.InvalidArgument, verr.Error())
	fields := make([]string, 0, len(verr.Fields))
	for f := range verr.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	br := &errdetails.BadRequest{}
	for _, f := range fields {
		br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
			Field:       f,
			Description: verr.Fields[f],
		})
	}
	withDetails, err := st.WithDetails(br)
	if err != nil {
		return st.Err()
	}
	return withDetails.Err()
}

// FieldViolations returns the rejected field names carried by an
// InvalidArgument status, in order.
func FieldViolations(err error) []string {
	st, ok := status.FromError(err)
	if !ok {
		return nil
	}
	var out []string
	for _, d := range st.Details() {
		if br, ok := d.(*errdetails.BadRequest); ok {
			for _, v := range br.GetFieldViolations() {
				out = append(out, v.GetField())
			}
		}
	}
	return out
}
