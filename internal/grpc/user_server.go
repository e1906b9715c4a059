package grpcserver

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"userManagement/internal/auth"
	"userManagement/internal/users"
)

// Server implements UserServiceServer over the user service.
type Server struct {
	Users  *users.Service
	Logger *zap.Logger
	// Lifetime, when set, ends every WatchUsers stream once it is done.
	Lifetime context.Context
}

var _ UserServiceServer = (*Server)(nil)

func (s *Server) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// ListUsers returns every user in id order.
func (s *Server) ListUsers(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if _, err := auth.RequireReader(ctx); err != nil {
		return nil, err
	}
	list, err := s.Users.List(ctx)
	if err != nil {
		return nil, statusError(s.logger(), "list users", err)
	}
	return usersStruct(list, nil)
}

// FilterUsers narrows users by the optional first_name, last_name, email and
// phone terms. Blank terms are ignored.
func (s *Server) FilterUsers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, err := auth.RequireReader(ctx); err != nil {
		return nil, err
	}
	c := criteria(req)
	list, err := s.Users.Filter(ctx, c)
	if err != nil {
		return nil, statusError(s.logger(), "filter users", err)
	}
	return usersStruct(list, map[string]interface{}{"active_criteria": c.Active()})
}

// SearchUsers matches query against first and last names.
func (s *Server) SearchUsers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, err := auth.RequireReader(ctx); err != nil {
		return nil, err
	}
	list, err := s.Users.Search(ctx, str(req, "query"))
	if err != nil {
		return nil, statusError(s.logger(), "search users", err)
	}
	return usersStruct(list, nil)
}

func (s *Server) GetUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, err := auth.RequireReader(ctx); err != nil {
		return nil, err
	}
	userID, err := id(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	u, err := s.Users.Get(ctx, userID)
	if err != nil {
		return nil, statusError(s.logger(), "get user", err)
	}
	return userStruct(u)
}

func (s *Server) CreateUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	u, err := s.Users.Create(ctx, input(req))
	if err != nil {
		return nil, statusError(s.logger(), "create user", err)
	}
	return userStruct(u)
}

func (s *Server) UpdateUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	userID, err := id(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	u, err := s.Users.Update(ctx, userID, input(req))
	if err != nil {
		return nil, statusError(s.logger(), "update user", err)
	}
	return userStruct(u)
}

func (s *Server) DeleteUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	userID, err := id(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.Users.Delete(ctx, userID); err != nil {
		return nil, statusError(s.logger(), "delete user", err)
	}
	return &structpb.Struct{}, nil
}

// WatchUsers streams the full user list now and after every change until
// the client goes away or the server shuts down.
func (s *Server) WatchUsers(_ *structpb.Struct, stream grpc.ServerStream) error {
	if _, err := auth.RequireReader(stream.Context()); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()
	if s.Lifetime != nil {
		stop := context.AfterFunc(s.Lifetime, cancel)
		defer stop()
	}
	snapshots, err := s.Users.Subscribe(ctx)
	if err != nil {
		return statusError(s.logger(), "watch users", err)
	}
	for snap := range snapshots {
		msg, err := usersStruct(snap, nil)
		if err != nil {
			return status.Errorf(codes.Internal, "encode snapshot: %v", err)
		}
		if err := stream.SendMsg(msg); err != nil {
			return err
		}
	}
	if s.Lifetime != nil && s.Lifetime.Err() != nil {
		return status.Error(codes.Unavailable, "server shutting down")
	}
	return nil
}
