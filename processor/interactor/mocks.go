package interactor

import (
	"context"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/mock"
)

type DockerClientMock struct {
	mock.Mock
}

func (mocked *DockerClientMock) ImagePull(ctx context.Context, refStr string, options types.ImagePullOptions) (io.ReadCloser, error) {
	args := mocked.Called(ctx, refStr, options)

	var reader io.ReadCloser = nil
	if value, ok := args.Get(0).(io.ReadCloser); ok {
		reader = value
	}
	return reader, args.Error(1)
}

func (mocked *DockerClientMock) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *specs.Platform, containerName string) (container.CreateResponse, error) {
	args := mocked.Called(ctx, config, hostConfig, networkingConfig, platform, containerName)
	return args.Get(0).(container.CreateResponse), args.Error(1)
}

func (mocked *DockerClientMock) ContainerStart(ctx context.Context, containerID string, options types.ContainerStartOptions) error {
	args := mocked.Called(ctx, containerID, options)
	return args.Error(0)
}

func (mocked *DockerClientMock) ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error {
	args := mocked.Called(ctx, containerID, options)
	return args.Error(0)
}

func (mocked *DockerClientMock) ContainerRemove(ctx context.Context, containerID string, options types.ContainerRemoveOptions) error {
	args := mocked.Called(ctx, containerID, options)
	return args.Error(0)
}

func (mocked *DockerClientMock) ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error) {
	args := mocked.Called(ctx, containerID)
	return args.Get(0).(types.ContainerJSON), args.Error(1)
}

func (mocked *DockerClientMock) NetworkCreate(ctx context.Context, name string, options types.NetworkCreate) (types.NetworkCreateResponse, error) {
	args := mocked.Called(ctx, name, options)
	return args.Get(0).(types.NetworkCreateResponse), args.Error(1)
}

func (mocked *DockerClientMock) NetworkInspect(ctx context.Context, networkID string, options types.NetworkInspectOptions) (types.NetworkResource, error) {
	args := mocked.Called(ctx, networkID, options)
	return args.Get(0).(types.NetworkResource), args.Error(1)
}

func (mocked *DockerClientMock) NetworkRemove(ctx context.Context, networkID string) error {
	args := mocked.Called(ctx, networkID)
	return args.Error(0)
}

type ReadCloserMock struct {
	mock.Mock
}

func (mocked *ReadCloserMock) Close() error {
	args := mocked.Called()
	return args.Error(0)
}

func (mocked *ReadCloserMock) Read(p []byte) (n int, err error) {
	args := mocked.Called(p)
	return args.Int(0), args.Error(1)
}
