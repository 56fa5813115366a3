package mailman

import "context"

// CreateOptions are passed to newlist when a list is created
type CreateOptions struct {
	Owner     string
	Password  string
	Language  string
	URLHost   string
	EmailHost string
}

// Primitives is everything the reconciler needs from a Mailman server.
// Implementations are expected to take the list lock themselves around
// owner and password mutations.
type Primitives interface {
	Exists(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, name string, opts CreateOptions) error
	Remove(ctx context.Context, name string, archives bool) error

	ListMembers(ctx context.Context, name string, fullnames bool) ([]string, error)
	IsMember(ctx context.Context, name, address string) (bool, error)
	AddMembers(ctx context.Context, name string, addresses []string) error
	RemoveMembers(ctx context.Context, name string, addresses []string) error

	GetOwners(ctx context.Context, name string) ([]string, error)
	SetOwners(ctx context.Context, name string, owners []string) error

	SetPassword(ctx context.Context, name, password string) error
	CheckPassword(ctx context.Context, name, password string) (bool, error)
}
