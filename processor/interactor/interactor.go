package interactor

import (
	"context"
	"errors"

	"github.com/browseterm/go-spawner/common"
	"github.com/docker/go-connections/nat"
)

const (
	OP_CREATE  = "create"
	OP_START   = "start"
	OP_STOP    = "stop"
	OP_DELETE  = "delete"
	OP_INSPECT = "inspect"
)

// Sentinel errors shared by both backends. The processor maps them
// to the error kinds reported to clients.
var (
	ErrNotFound         = errors.New("target not found")
	ErrUnsupported      = errors.New("operation not supported by backend")
	ErrReadinessTimeout = errors.New("container did not become ready in time")
	ErrNameConflict     = errors.New("container name already in use")
)

// PortMapping is one resolved publish entry. Port is the internal
// "<port>/<proto>" pair, External the host-side port it maps to.
type PortMapping struct {
	Port     nat.Port
	External int
}

type CreateOptions struct {
	Image   string
	Name    string
	Network string
	Ports   []PortMapping
	Env     []string
}

// CreateResult is one created addressable unit. Docker yields exactly
// one per create, kubernetes yields one per published port since a pod
// is only reachable through its services.
type CreateResult struct {
	ID      string
	Network string
	Port    int
}

type AddressInfo struct {
	ID string
	IP string
}

type StatusResult struct {
	ID      string
	Network string
	Status  string
}

// ContainerInteractor is the capability contract every backend
// implements. Callers must check Supports before dispatching an
// operation, kubernetes has no stop.
type ContainerInteractor interface {
	Supports(operation string) bool
	EnsureNetwork(ctx context.Context, network string) error
	CreateContainer(ctx context.Context, options CreateOptions) ([]CreateResult, error)
	StartContainer(ctx context.Context, id string, network string) (AddressInfo, error)
	StopContainer(ctx context.Context, id string) (StatusResult, error)
	DeleteContainer(ctx context.Context, id string, network string) ([]StatusResult, error)
	InspectContainer(ctx context.Context, id string, network string) (common.ContainerRecord, error)
}
