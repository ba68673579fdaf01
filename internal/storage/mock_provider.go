package storage

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// MockBlobStore is a mock implementation of BlobStore for testing.
type MockBlobStore struct {
	mock.Mock
}

// PutObject is the mock implementation of the PutObject method.
func (m *MockBlobStore) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	args := m.Called(ctx, path, contentType, r)
	return args.String(0), args.Error(1) //nolint:wrapcheck
}
