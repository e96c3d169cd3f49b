package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/abuzaid911/uaepass-front/internal/storage"
)

// MockOpener is a mock implementation of browser.Opener
type MockOpener struct {
	mock.Mock
}

func (m *MockOpener) Open(url string) error {
	args := m.Called(url)
	return args.Error(0)
}

// MockAppDetector is a mock implementation of browser.AppDetector
type MockAppDetector struct {
	mock.Mock
}

func (m *MockAppDetector) Installed(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

// MockTokenStore is a mock implementation of storage.TokenStore
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) Put(ctx context.Context, key string, token *storage.StoredToken) error {
	args := m.Called(ctx, key, token)
	return args.Error(0)
}

func (m *MockTokenStore) Get(ctx context.Context, key string) (*storage.StoredToken, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.StoredToken), args.Error(1)
}

func (m *MockTokenStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
