package interactor

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/browseterm/go-spawner/common"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func createDockerInteractorWithMock(dockerMock *DockerClientMock) *DockerInteractor {
	return &DockerInteractor{
		dockerClient:  dockerMock,
		retryCooldown: time.Millisecond,
		retryAttempts: 2,
	}
}

func addImagePullExpectation(dockerMock *DockerClientMock) {
	reader := ReadCloserMock{}
	reader.On("Read", mock.Anything).Return(0, io.EOF)
	reader.On("Close").Return(nil)
	dockerMock.On("ImagePull", mock.Anything, mock.Anything, mock.Anything).Return(&reader, nil).Once()
}

func TestDockerSupportsFullLifecycle(t *testing.T) {
	interactor := createDockerInteractorWithMock(&DockerClientMock{})

	assert.True(t, interactor.Supports(OP_CREATE))
	assert.True(t, interactor.Supports(OP_START))
	assert.True(t, interactor.Supports(OP_STOP))
	assert.True(t, interactor.Supports(OP_DELETE))
	assert.True(t, interactor.Supports(OP_INSPECT))
	assert.False(t, interactor.Supports("unknown"))
}

func TestDockerCreateContainer(t *testing.T) {
	dockerMock := DockerClientMock{}
	interactor := createDockerInteractorWithMock(&dockerMock)

	addImagePullExpectation(&dockerMock)

	sshPort := nat.Port("22/tcp")
	matchHostConfig := mock.MatchedBy(func(hostConfig *container.HostConfig) bool {
		bindings := hostConfig.PortBindings[sshPort]
		return len(bindings) == 1 && bindings[0].HostPort == "2222"
	})

	createResponse := container.CreateResponse{ID: "abc123"}
	dockerMock.On("ContainerCreate", mock.Anything, mock.Anything, matchHostConfig, mock.Anything, mock.Anything, "t1").Return(createResponse, nil).Once()

	options := CreateOptions{
		Image:   "ubuntu",
		Name:    "t1",
		Network: "net1",
		Ports:   []PortMapping{{Port: sshPort, External: 2222}},
	}

	results, err := interactor.CreateContainer(context.Background(), options)
	assert.Nil(t, err)

	assert.Len(t, results, 1)
	assert.Equal(t, "abc123", results[0].ID)
	assert.Equal(t, "net1", results[0].Network)
	assert.Equal(t, 2222, results[0].Port)

	dockerMock.AssertExpectations(t)
}

func TestDockerCreateContinuesOnPullFailure(t *testing.T) {
	dockerMock := DockerClientMock{}
	interactor := createDockerInteractorWithMock(&dockerMock)

	var reader io.ReadCloser
	dockerMock.On("ImagePull", mock.Anything, mock.Anything, mock.Anything).Return(reader, errors.New("registry unreachable")).Once()

	createResponse := container.CreateResponse{ID: "abc123"}
	dockerMock.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(createResponse, nil).Once()

	options := CreateOptions{Image: "ubuntu", Name: "t1", Network: "net1"}

	results, err := interactor.CreateContainer(context.Background(), options)
	assert.Nil(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, 0, results[0].Port)

	dockerMock.AssertExpectations(t)
}

func TestDockerCreateNameConflict(t *testing.T) {
	dockerMock := DockerClientMock{}
	interactor := createDockerInteractorWithMock(&dockerMock)

	addImagePullExpectation(&dockerMock)

	conflict := errdefs.Conflict(errors.New("name t1 already in use"))
	dockerMock.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(container.CreateResponse{}, conflict).Once()

	options := CreateOptions{Image: "ubuntu", Name: "t1", Network: "net1"}

	_, err := interactor.CreateContainer(context.Background(), options)
	assert.ErrorIs(t, err, ErrNameConflict)
}

func TestDockerStartContainer(t *testing.T) {
	dockerMock := DockerClientMock{}
	interactor := createDockerInteractorWithMock(&dockerMock)

	dockerMock.On("ContainerStart", mock.Anything, "abc123", mock.Anything).Return(nil).Once()

	inspectResponse := types.ContainerJSON{}
	inspectResponse.NetworkSettings = &types.NetworkSettings{}
	inspectResponse.NetworkSettings.Networks = map[string]*network.EndpointSettings{
		"net1": {IPAddress: "172.18.0.2"},
	}
	dockerMock.On("ContainerInspect", mock.Anything, "abc123").Return(inspectResponse, nil).Once()

	result, err := interactor.StartContainer(context.Background(), "abc123", "net1")
	assert.Nil(t, err)

	assert.Equal(t, "abc123", result.ID)
	assert.Equal(t, "172.18.0.2", result.IP)

	dockerMock.AssertExpectations(t)
}

func TestDockerStartNotFound(t *testing.T) {
	dockerMock := DockerClientMock{}
	interactor := createDockerInteractorWithMock(&dockerMock)

	missing := errdefs.NotFound(errors.New("no such container"))
	dockerMock.On("ContainerStart", mock.Anything, "ghost", mock.Anything).Return(missing).Once()

	_, err := interactor.StartContainer(context.Background(), "ghost", "net1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDockerStartRetriesConnectionFailure(t *testing.T) {
	dockerMock := DockerClientMock{}
	interactor := createDockerInteractorWithMock(&dockerMock)

	connectionFailed := client.ErrorConnectionFailed("docker daemon")
	dockerMock.On("ContainerStart", mock.Anything, "abc123", mock.Anything).Return(connectionFailed).Twice()
	dockerMock.On("ContainerStart", mock.Anything, "abc123", mock.Anything).Return(nil).Once()

	inspectResponse := types.ContainerJSON{}
	inspectResponse.NetworkSettings = &types.NetworkSettings{}
	inspectResponse.NetworkSettings.Networks = map[string]*network.EndpointSettings{
		"net1": {IPAddress: "172.18.0.2"},
	}
	dockerMock.On("ContainerInspect", mock.Anything, "abc123").Return(inspectResponse, nil).Once()

	result, err := interactor.StartContainer(context.Background(), "abc123", "net1")
	assert.Nil(t, err)
	assert.Equal(t, "172.18.0.2", result.IP)

	dockerMock.AssertExpectations(t)
}

func TestDockerStopContainer(t *testing.T) {
	dockerMock := DockerClientMock{}
	interactor := createDockerInteractorWithMock(&dockerMock)

	dockerMock.On("ContainerStop", mock.Anything, "abc123", mock.Anything).Return(nil).Once()

	result, err := interactor.StopContainer(context.Background(), "abc123")
	assert.Nil(t, err)

	assert.Equal(t, "abc123", result.ID)
	assert.Equal(t, common.STATE_STOPPED, result.Status)
}

func TestDockerDeleteRemovesIdleNetwork(t *testing.T) {
	dockerMock := DockerClientMock{}
	interactor := createDockerInteractorWithMock(&dockerMock)

	dockerMock.On("ContainerRemove", mock.Anything, "abc123", mock.Anything).Return(nil).Once()

	idleNetwork := types.NetworkResource{Containers: map[string]types.EndpointResource{}}
	dockerMock.On("NetworkInspect", mock.Anything, "net1", mock.Anything).Return(idleNetwork, nil).Once()
	dockerMock.On("NetworkRemove", mock.Anything, "net1").Return(nil).Once()

	results, err := interactor.DeleteContainer(context.Background(), "abc123", "net1")
	assert.Nil(t, err)

	assert.Len(t, results, 1)
	assert.Equal(t, common.STATE_DELETED, results[0].Status)

	dockerMock.AssertExpectations(t)
}

func TestDockerDeleteKeepsBusyNetwork(t *testing.T) {
	dockerMock := DockerClientMock{}
	interactor := createDockerInteractorWithMock(&dockerMock)

	dockerMock.On("ContainerRemove", mock.Anything, "abc123", mock.Anything).Return(nil).Once()

	busyNetwork := types.NetworkResource{Containers: map[string]types.EndpointResource{
		"other": {},
	}}
	dockerMock.On("NetworkInspect", mock.Anything, "net1", mock.Anything).Return(busyNetwork, nil).Once()

	_, err := interactor.DeleteContainer(context.Background(), "abc123", "net1")
	assert.Nil(t, err)

	dockerMock.AssertNotCalled(t, "NetworkRemove", mock.Anything, mock.Anything)
}

func TestDockerDeleteNotFound(t *testing.T) {
	dockerMock := DockerClientMock{}
	interactor := createDockerInteractorWithMock(&dockerMock)

	missing := errdefs.NotFound(errors.New("no such container"))
	dockerMock.On("ContainerRemove", mock.Anything, "ghost", mock.Anything).Return(missing).Once()

	_, err := interactor.DeleteContainer(context.Background(), "ghost", "net1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDockerEnsureNetworkExisting(t *testing.T) {
	dockerMock := DockerClientMock{}
	interactor := createDockerInteractorWithMock(&dockerMock)

	dockerMock.On("NetworkInspect", mock.Anything, "net1", mock.Anything).Return(types.NetworkResource{}, nil).Once()

	err := interactor.EnsureNetwork(context.Background(), "net1")
	assert.Nil(t, err)

	dockerMock.AssertNotCalled(t, "NetworkCreate", mock.Anything, mock.Anything, mock.Anything)
}

func TestDockerEnsureNetworkCreates(t *testing.T) {
	dockerMock := DockerClientMock{}
	interactor := createDockerInteractorWithMock(&dockerMock)

	missing := errdefs.NotFound(errors.New("network not found"))
	dockerMock.On("NetworkInspect", mock.Anything, "net1", mock.Anything).Return(types.NetworkResource{}, missing).Once()

	matchBridge := mock.MatchedBy(func(options types.NetworkCreate) bool {
		return options.Driver == "bridge"
	})
	dockerMock.On("NetworkCreate", mock.Anything, "net1", matchBridge).Return(types.NetworkCreateResponse{ID: "n1"}, nil).Once()

	err := interactor.EnsureNetwork(context.Background(), "net1")
	assert.Nil(t, err)

	dockerMock.AssertExpectations(t)
}

func TestDockerEnsureNetworkLosingRaceIsSuccess(t *testing.T) {
	dockerMock := DockerClientMock{}
	interactor := createDockerInteractorWithMock(&dockerMock)

	missing := errdefs.NotFound(errors.New("network not found"))
	dockerMock.On("NetworkInspect", mock.Anything, "net1", mock.Anything).Return(types.NetworkResource{}, missing).Once()

	conflict := errdefs.Conflict(errors.New("network net1 already exists"))
	dockerMock.On("NetworkCreate", mock.Anything, "net1", mock.Anything).Return(types.NetworkCreateResponse{}, conflict).Once()

	err := interactor.EnsureNetwork(context.Background(), "net1")
	assert.Nil(t, err)
}

func TestDockerInspectContainer(t *testing.T) {
	dockerMock := DockerClientMock{}
	interactor := createDockerInteractorWithMock(&dockerMock)

	portMap := make(nat.PortMap)
	portMap[nat.Port("22/tcp")] = []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: "2222"}}

	inspectResponse := types.ContainerJSON{}
	inspectResponse.ContainerJSONBase = &types.ContainerJSONBase{
		ID:    "abc123",
		State: &types.ContainerState{Running: true, Status: "running"},
	}
	inspectResponse.NetworkSettings = &types.NetworkSettings{}
	inspectResponse.NetworkSettings.Ports = portMap

	dockerMock.On("ContainerInspect", mock.Anything, "abc123").Return(inspectResponse, nil).Once()

	record, err := interactor.InspectContainer(context.Background(), "abc123", "net1")
	assert.Nil(t, err)

	assert.Equal(t, "abc123", record.ContainerID)
	assert.Equal(t, common.BACKEND_DOCKER, record.BackendKind)
	assert.Equal(t, common.STATE_RUNNING, record.State)
	assert.Equal(t, []common.PortBinding{{InternalPort: 22, ExternalPort: 2222}}, record.Ports)
}
