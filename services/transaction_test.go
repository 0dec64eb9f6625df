package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/upb/tracking-bridge/repositories"
)

// MockTransactionManager is a mock implementation of TransactionManager
type MockTransactionManager struct {
	mock.Mock
}

func (m *MockTransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	args := m.Called(ctx)
	if tx := args.Get(0); tx != nil {
		return tx.(repositories.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}

// MockTransaction is a mock implementation of Transaction
type MockTransaction struct {
	mock.Mock
	committed  bool
	rolledback bool
}

func (m *MockTransaction) Commit() error {
	args := m.Called()
	m.committed = true
	return args.Error(0)
}

func (m *MockTransaction) Rollback() error {
	args := m.Called()
	m.rolledback = true
	return args.Error(0)
}

func (m *MockTransaction) Context() context.Context {
	args := m.Called()
	return args.Get(0).(context.Context)
}

type txKey struct{}

func TestWithTransactionResult_Success(t *testing.T) {
	ctx := context.Background()
	txCtx := context.WithValue(ctx, txKey{}, "tx")
	mockTxMgr := new(MockTransactionManager)
	mockTx := new(MockTransaction)

	mockTxMgr.On("Begin", ctx).Return(mockTx, nil)
	mockTx.On("Context").Return(txCtx)
	mockTx.On("Commit").Return(nil)

	result, err := WithTransactionResult(ctx, mockTxMgr, func(ctx context.Context, tx repositories.Transaction) (string, error) {
		assert.Equal(t, "tx", ctx.Value(txKey{}))
		return "success", nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.True(t, mockTx.committed)
	assert.False(t, mockTx.rolledback)
	mockTxMgr.AssertExpectations(t)
	mockTx.AssertExpectations(t)
}

func TestWithTransactionResult_ErrorInFunction(t *testing.T) {
	ctx := context.Background()
	mockTxMgr := new(MockTransactionManager)
	mockTx := new(MockTransaction)
	expectedErr := errors.New("operation failed")

	mockTxMgr.On("Begin", ctx).Return(mockTx, nil)
	mockTx.On("Context").Return(ctx)
	mockTx.On("Rollback").Return(nil)

	result, err := WithTransactionResult(ctx, mockTxMgr, func(ctx context.Context, tx repositories.Transaction) (string, error) {
		return "", expectedErr
	})

	assert.Equal(t, expectedErr, err)
	assert.Equal(t, "", result)
	assert.False(t, mockTx.committed)
	assert.True(t, mockTx.rolledback)
	mockTx.AssertExpectations(t)
}

func TestWithTransactionResult_RollbackError(t *testing.T) {
	ctx := context.Background()
	mockTxMgr := new(MockTransactionManager)
	mockTx := new(MockTransaction)

	mockTxMgr.On("Begin", ctx).Return(mockTx, nil)
	mockTx.On("Context").Return(ctx)
	mockTx.On("Rollback").Return(errors.New("rollback failed"))

	_, err := WithTransactionResult(ctx, mockTxMgr, func(ctx context.Context, tx repositories.Transaction) (int, error) {
		return 0, errors.New("operation failed")
	})

	assert.ErrorContains(t, err, "transaction error")
	assert.ErrorContains(t, err, "rollback error")
	assert.True(t, mockTx.rolledback)
}

func TestWithTransactionResult_BeginError(t *testing.T) {
	ctx := context.Background()
	mockTxMgr := new(MockTransactionManager)

	mockTxMgr.On("Begin", ctx).Return(nil, errors.New("pool exhausted"))

	result, err := WithTransactionResult(ctx, mockTxMgr, func(ctx context.Context, tx repositories.Transaction) (int, error) {
		return 42, nil
	})

	assert.ErrorContains(t, err, "failed to begin transaction")
	assert.Equal(t, 0, result)
	mockTxMgr.AssertExpectations(t)
}

func TestWithTransactionResult_CommitError(t *testing.T) {
	ctx := context.Background()
	mockTxMgr := new(MockTransactionManager)
	mockTx := new(MockTransaction)

	mockTxMgr.On("Begin", ctx).Return(mockTx, nil)
	mockTx.On("Context").Return(ctx)
	mockTx.On("Commit").Return(errors.New("commit failed"))

	result, err := WithTransactionResult(ctx, mockTxMgr, func(ctx context.Context, tx repositories.Transaction) (int, error) {
		return 42, nil
	})

	assert.ErrorContains(t, err, "failed to commit transaction")
	assert.Equal(t, 42, result)
	assert.True(t, mockTx.committed)
}

func TestWithTransactionResult_PanicRollsBack(t *testing.T) {
	ctx := context.Background()
	mockTxMgr := new(MockTransactionManager)
	mockTx := new(MockTransaction)

	mockTxMgr.On("Begin", ctx).Return(mockTx, nil)
	mockTx.On("Context").Return(ctx)
	mockTx.On("Rollback").Return(nil)

	assert.Panics(t, func() {
		_, _ = WithTransactionResult(ctx, mockTxMgr, func(ctx context.Context, tx repositories.Transaction) (int, error) {
			panic("boom")
		})
	})
	assert.True(t, mockTx.rolledback)
}
