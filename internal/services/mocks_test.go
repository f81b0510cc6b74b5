package services

import (
	"context"

	"github.com/ruralpay/txauth/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, message string) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Store(ctx context.Context, record models.TransactionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}
