package grpcserver

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"userManagement/internal/filter"
	"userManagement/internal/users"
	"userManagement/models"
)

// Client is a typed UserService client.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) List(ctx context.Context, opts ...grpc.CallOption) ([]*models.User, error) {
	out, err := c.call(ctx, MethodListUsers, nil, opts...)
	if err != nil {
		return nil, err
	}
	return DecodeUsers(out), nil
}

func (c *Client) Filter(ctx context.Context, crit filter.Criteria, opts ...grpc.CallOption) ([]*models.User, error) {
	req, err := EncodeCriteria(crit)
	if err != nil {
		return nil, err
	}
	out, err := c.call(ctx, MethodFilterUsers, req, opts...)
	if err != nil {
		return nil, err
	}
	return DecodeUsers(out), nil
}

func (c *Client) Search(ctx context.Context, query string, opts ...grpc.CallOption) ([]*models.User, error) {
	req, err := structpb.NewStruct(map[string]interface{}{"query": query})
	if err != nil {
		return nil, err
	}
	out, err := c.call(ctx, MethodSearchUsers, req, opts...)
	if err != nil {
		return nil, err
	}
	return DecodeUsers(out), nil
}

func (c *Client) Get(ctx context.Context, userID int64, opts ...grpc.CallOption) (*models.User, error) {
	out, err := c.call(ctx, MethodGetUser, idStruct(userID), opts...)
	if err != nil {
		return nil, err
	}
	return DecodeUser(out.GetFields()["user"].GetStructValue()), nil
}

func (c *Client) Create(ctx context.Context, in users.Input, opts ...grpc.CallOption) (*models.User, error) {
	req, err := EncodeInput(0, in)
	if err != nil {
		return nil, err
	}
	out, err := c.call(ctx, MethodCreateUser, req, opts...)
	if err != nil {
		return nil, err
	}
	return DecodeUser(out.GetFields()["user"].GetStructValue()), nil
}

func (c *Client) Update(ctx context.Context, userID int64, in users.Input, opts ...grpc.CallOption) (*models.User, error) {
	req, err := EncodeInput(userID, in)
	if err != nil {
		return nil, err
	}
	out, err := c.call(ctx, MethodUpdateUser, req, opts...)
	if err != nil {
		return nil, err
	}
	return DecodeUser(out.GetFields()["user"].GetStructValue()), nil
}

func (c *Client) Delete(ctx context.Context, userID int64, opts ...grpc.CallOption) error {
	_, err := c.call(ctx, MethodDeleteUser, idStruct(userID), opts...)
	return err
}

// Watch opens a WatchUsers stream. Each Recv yields a full snapshot.
func (c *Client) Watch(ctx context.Context, opts ...grpc.CallOption) (*Watcher, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], MethodWatchUsers, opts...)
	if err != nil {
		return nil, err
	}
	// io.EOF means the server already ended the stream; Recv reports why.
	if err := stream.SendMsg(&structpb.Struct{}); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &Watcher{stream: stream}, nil
}

// Watcher reads snapshots from a WatchUsers stream.
type Watcher struct {
	stream grpc.ClientStream
}

func (w *Watcher) Recv() ([]*models.User, error) {
	out := new(structpb.Struct)
	if err := w.stream.RecvMsg(out); err != nil {
		return nil, err
	}
	return DecodeUsers(out), nil
}

func idStruct(userID int64) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id": structpb.NewNumberValue(float64(userID)),
	}}
}
