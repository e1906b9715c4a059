package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"userManagement/internal/filter"
	grpcserver "userManagement/internal/grpc"
	"userManagement/internal/users"
	"userManagement/models"
)

// TokenEnv holds the bearer token for --remote when --token is not given.
const TokenEnv = "USERMGR_TOKEN"

// userStore is what the users subcommands need. The local *users.Service
// and a gRPC connection to a running server both provide it.
type userStore interface {
	List(ctx context.Context) ([]*models.User, error)
	Filter(ctx context.Context, c filter.Criteria) ([]*models.User, error)
	Search(ctx context.Context, query string) ([]*models.User, error)
	Get(ctx context.Context, id int64) (*models.User, error)
	Create(ctx context.Context, in users.Input) (*models.User, error)
	Update(ctx context.Context, id int64, in users.Input) (*models.User, error)
	Delete(ctx context.Context, id int64) error
}

var (
	_ userStore = (*users.Service)(nil)
	_ userStore = (*remoteStore)(nil)
)

// remoteStore sends every call to a usermgr server with a bearer token.
type remoteStore struct {
	client *grpcserver.Client
	token  string
}

func (r *remoteStore) auth(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+r.token)
}

func (r *remoteStore) List(ctx context.Context) ([]*models.User, error) {
	return r.client.List(r.auth(ctx))
}

func (r *remoteStore) Filter(ctx context.Context, c filter.Criteria) ([]*models.User, error) {
	return r.client.Filter(r.auth(ctx), c)
}

func (r *remoteStore) Search(ctx context.Context, query string) ([]*models.User, error) {
	return r.client.Search(r.auth(ctx), query)
}

func (r *remoteStore) Get(ctx context.Context, id int64) (*models.User, error) {
	return r.client.Get(r.auth(ctx), id)
}

func (r *remoteStore) Create(ctx context.Context, in users.Input) (*models.User, error) {
	return r.client.Create(r.auth(ctx), in)
}

func (r *remoteStore) Update(ctx context.Context, id int64, in users.Input) (*models.User, error) {
	return r.client.Update(r.auth(ctx), id, in)
}

func (r *remoteStore) Delete(ctx context.Context, id int64) error {
	return r.client.Delete(r.auth(ctx), id)
}

type remoteFlags struct {
	Addr  string
	Token string
}

func bindRemoteFlags(cmd *cobra.Command, rf *remoteFlags) {
	cmd.PersistentFlags().StringVar(&rf.Addr, "remote", "", "Talk to a running server at this gRPC address instead of the local database")
	cmd.PersistentFlags().StringVar(&rf.Token, "token", "", "Bearer token for --remote (default $"+TokenEnv+")")
}

// dialRemote connects to rf.Addr. The returned close func releases the
// connection.
func dialRemote(rf *remoteFlags) (userStore, func(), error) {
	token := rf.Token
	if token == "" {
		token = os.Getenv(TokenEnv)
	}
	if token == "" {
		return nil, nil, usageErrorf("--remote needs --token or $%s", TokenEnv)
	}
	// Plaintext, matching the server; put TLS in front of both.
	conn, err := grpc.NewClient(rf.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, usageErrorf("remote %q: %v", rf.Addr, err)
	}
	store := &remoteStore{client: grpcserver.NewClient(conn), token: token}
	return store, func() { _ = conn.Close() }, nil
}
