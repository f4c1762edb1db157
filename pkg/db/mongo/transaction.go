package mongo

import (
	"context"
	"fmt"

	apperrors "lessonbook/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// TransactionFunc runs inside a transaction. ctx is a mongo.SessionContext
// when the manager is transactional.
type TransactionFunc func(ctx context.Context) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type mongoTransactionManager struct {
	client *mongo.Client
}

// NewTransactionManager returns a manager that runs fn in a multi-document
// transaction. Standalone servers do not support transactions; pass
// enabled=false there and fn runs directly.
func NewTransactionManager(client *mongo.Client, enabled bool) TransactionManager {
	if !enabled || client == nil {
		return DirectTransactionManager{}
	}
	return &mongoTransactionManager{client: client}
}

func (m *mongoTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	})

	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// DirectTransactionManager runs fn without a transaction.
type DirectTransactionManager struct{}

func (DirectTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	return fn(ctx)
}
