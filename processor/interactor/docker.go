package interactor

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"time"

	"github.com/browseterm/go-spawner/common"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
)

// DockerClient covers the part of the engine API the interactor uses.
type DockerClient interface {
	ImagePull(ctx context.Context, refStr string, options types.ImagePullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *specs.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options types.ContainerStartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options types.ContainerRemoveOptions) error
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	NetworkCreate(ctx context.Context, name string, options types.NetworkCreate) (types.NetworkCreateResponse, error)
	NetworkInspect(ctx context.Context, networkID string, options types.NetworkInspectOptions) (types.NetworkResource, error)
	NetworkRemove(ctx context.Context, networkID string) error
}

type DockerInteractor struct {
	dockerClient DockerClient

	retryCooldown time.Duration
	retryAttempts int
}

type DockerInteractorOptions struct {
	RetryCooldown time.Duration
	RetryAttempts int
}

func CreateDockerInteractor(options DockerInteractorOptions) (ContainerInteractor, error) {
	docker, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}

	interactor := DockerInteractor{
		dockerClient:  docker,
		retryCooldown: options.RetryCooldown,
		retryAttempts: options.RetryAttempts,
	}

	return &interactor, nil
}

func (interactor *DockerInteractor) Supports(operation string) bool {
	switch operation {
	case OP_CREATE, OP_START, OP_STOP, OP_DELETE, OP_INSPECT:
		return true
	}
	return false
}

// EnsureNetwork creates the bridge network if it does not exist yet.
// A concurrent create racing on the same name reports a conflict,
// which counts as success.
func (interactor *DockerInteractor) EnsureNetwork(ctx context.Context, containerNetwork string) error {
	_, err := interactor.dockerClient.NetworkInspect(ctx, containerNetwork, types.NetworkInspectOptions{})
	if err == nil {
		return nil
	}

	if !errdefs.IsNotFound(err) {
		return interactor.mapError(err)
	}

	_, err = interactor.dockerClient.NetworkCreate(ctx, containerNetwork, types.NetworkCreate{Driver: "bridge", CheckDuplicate: true})
	if err != nil && !errdefs.IsConflict(err) {
		return interactor.mapError(err)
	}

	return nil
}

func (interactor *DockerInteractor) CreateContainer(ctx context.Context, options CreateOptions) ([]CreateResult, error) {
	log.Printf("Pulling image %v", options.Image)
	err := interactor.withRetry(ctx, func() error {
		out, err := interactor.dockerClient.ImagePull(ctx, options.Image, types.ImagePullOptions{})
		if err != nil {
			return err
		}
		defer out.Close()

		_, err = io.Copy(io.Discard, out)
		return err
	})
	if err != nil {
		if client.IsErrConnectionFailed(err) {
			return nil, interactor.mapError(err)
		}
		// a stale local copy may still be usable
		log.Printf("Could not pull image %v: %v", options.Image, err)
	}

	exposedPorts := make(nat.PortSet)
	portBindings := make(nat.PortMap)
	for _, mapping := range options.Ports {
		exposedPorts[mapping.Port] = struct{}{}
		portBindings[mapping.Port] = []nat.PortBinding{{
			HostIP:   "0.0.0.0",
			HostPort: strconv.Itoa(mapping.External),
		}}
	}

	config := container.Config{
		Image:        options.Image,
		Env:          options.Env,
		ExposedPorts: exposedPorts,
	}

	hostConfig := container.HostConfig{PortBindings: portBindings}

	networkingConfig := network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			options.Network: {},
		},
	}

	var resp container.CreateResponse
	err = interactor.withRetry(ctx, func() error {
		var err error
		resp, err = interactor.dockerClient.ContainerCreate(ctx, &config, &hostConfig, &networkingConfig, nil, options.Name)
		return err
	})
	if err != nil {
		return nil, interactor.mapError(err)
	}
	log.Printf("Created container %v", resp.ID)

	result := CreateResult{ID: resp.ID, Network: options.Network}
	if len(options.Ports) > 0 {
		result.Port = options.Ports[0].External
	}

	return []CreateResult{result}, nil
}

func (interactor *DockerInteractor) StartContainer(ctx context.Context, id string, containerNetwork string) (AddressInfo, error) {
	result := AddressInfo{}

	err := interactor.withRetry(ctx, func() error {
		return interactor.dockerClient.ContainerStart(ctx, id, types.ContainerStartOptions{})
	})
	if err != nil {
		return result, interactor.mapError(err)
	}

	containerInfo, err := interactor.dockerClient.ContainerInspect(ctx, id)
	if err != nil {
		return result, interactor.mapError(err)
	}

	endpoint := containerInfo.NetworkSettings.Networks[containerNetwork]
	if endpoint == nil || endpoint.IPAddress == "" {
		return result, fmt.Errorf("container %v has no address on network %v", id, containerNetwork)
	}

	log.Printf("Started container %v with address %v", id, endpoint.IPAddress)

	result.ID = id
	result.IP = endpoint.IPAddress
	return result, nil
}

func (interactor *DockerInteractor) StopContainer(ctx context.Context, id string) (StatusResult, error) {
	result := StatusResult{}

	err := interactor.withRetry(ctx, func() error {
		return interactor.dockerClient.ContainerStop(ctx, id, container.StopOptions{})
	})
	if err != nil {
		return result, interactor.mapError(err)
	}

	result.ID = id
	result.Status = common.STATE_STOPPED
	return result, nil
}

// DeleteContainer removes the container and tears the bridge network
// down once nothing remains attached to it.
func (interactor *DockerInteractor) DeleteContainer(ctx context.Context, id string, containerNetwork string) ([]StatusResult, error) {
	err := interactor.withRetry(ctx, func() error {
		return interactor.dockerClient.ContainerRemove(ctx, id, types.ContainerRemoveOptions{Force: true})
	})
	if err != nil {
		return nil, interactor.mapError(err)
	}
	log.Printf("Removed container %v", id)

	networkInfo, err := interactor.dockerClient.NetworkInspect(ctx, containerNetwork, types.NetworkInspectOptions{})
	if err == nil && len(networkInfo.Containers) == 0 {
		if err := interactor.dockerClient.NetworkRemove(ctx, containerNetwork); err != nil && !errdefs.IsNotFound(err) {
			log.Printf("Failed to remove network %v: %v", containerNetwork, err)
		} else {
			log.Printf("Removed network %v", containerNetwork)
		}
	}

	return []StatusResult{{ID: id, Network: containerNetwork, Status: common.STATE_DELETED}}, nil
}

func (interactor *DockerInteractor) InspectContainer(ctx context.Context, id string, containerNetwork string) (common.ContainerRecord, error) {
	result := common.ContainerRecord{}

	containerInfo, err := interactor.dockerClient.ContainerInspect(ctx, id)
	if err != nil {
		return result, interactor.mapError(err)
	}

	result.ContainerID = containerInfo.ID
	result.ContainerNetwork = containerNetwork
	result.BackendKind = common.BACKEND_DOCKER
	result.State = containerState(containerInfo.State)

	for port, bindings := range containerInfo.NetworkSettings.Ports {
		if len(bindings) == 0 {
			continue
		}

		external, err := strconv.Atoi(bindings[0].HostPort)
		if err != nil {
			continue
		}

		result.Ports = append(result.Ports, common.PortBinding{
			InternalPort: port.Int(),
			ExternalPort: external,
		})
	}

	sort.Slice(result.Ports, func(i, j int) bool {
		return result.Ports[i].InternalPort < result.Ports[j].InternalPort
	})

	return result, nil
}

func (interactor *DockerInteractor) withRetry(ctx context.Context, operation func() error) error {
	return retryTransient(ctx, interactor.retryCooldown, interactor.retryAttempts, client.IsErrConnectionFailed, operation)
}

func (interactor *DockerInteractor) mapError(err error) error {
	switch {
	case errdefs.IsNotFound(err):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errdefs.IsConflict(err):
		return fmt.Errorf("%w: %v", ErrNameConflict, err)
	}
	return err
}

func containerState(state *types.ContainerState) string {
	if state == nil {
		return common.STATE_CREATED
	}

	switch {
	case state.Running:
		return common.STATE_RUNNING
	case state.Status == "created":
		return common.STATE_CREATED
	}
	return common.STATE_STOPPED
}
