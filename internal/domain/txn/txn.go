package txn

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_manager.go -package=mocks . Manager

import "context"

// Manager runs fn inside one database transaction. Repositories called with
// the ctx passed to fn join that transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
type Manager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
