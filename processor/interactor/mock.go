package interactor

import (
	"context"

	"github.com/browseterm/go-spawner/common"
	"github.com/stretchr/testify/mock"
)

type MockInteractor struct {
	mock.Mock
}

func (mocked *MockInteractor) Supports(operation string) bool {
	args := mocked.Called(operation)
	return args.Bool(0)
}

func (mocked *MockInteractor) EnsureNetwork(ctx context.Context, network string) error {
	args := mocked.Called(ctx, network)
	return args.Error(0)
}

func (mocked *MockInteractor) CreateContainer(ctx context.Context, options CreateOptions) ([]CreateResult, error) {
	args := mocked.Called(ctx, options)
	return args.Get(0).([]CreateResult), args.Error(1)
}

func (mocked *MockInteractor) StartContainer(ctx context.Context, id string, network string) (AddressInfo, error) {
	args := mocked.Called(ctx, id, network)
	return args.Get(0).(AddressInfo), args.Error(1)
}

func (mocked *MockInteractor) StopContainer(ctx context.Context, id string) (StatusResult, error) {
	args := mocked.Called(ctx, id)
	return args.Get(0).(StatusResult), args.Error(1)
}

func (mocked *MockInteractor) DeleteContainer(ctx context.Context, id string, network string) ([]StatusResult, error) {
	args := mocked.Called(ctx, id, network)
	return args.Get(0).([]StatusResult), args.Error(1)
}

func (mocked *MockInteractor) InspectContainer(ctx context.Context, id string, network string) (common.ContainerRecord, error) {
	args := mocked.Called(ctx, id, network)
	return args.Get(0).(common.ContainerRecord), args.Error(1)
}
