package processor

import (
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/browseterm/go-spawner/common"
	"github.com/browseterm/go-spawner/processor/interactor"
	"github.com/docker/go-connections/nat"
	"github.com/lithammer/shortuuid"
)

// ValidationError rejects a request before any backend call is made.
type ValidationError struct {
	Message string
}

func (err *ValidationError) Error() string {
	return err.Message
}

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ResolvedSpec is a ContainerSpec with names generated and the publish
// map translated into concrete port mappings.
type ResolvedSpec struct {
	Image   string
	Name    string
	Network string
	Ports   []interactor.PortMapping
	Env     []string
}

// ResolveSpec validates the spec and fills in whatever the caller left
// out: a unique container name, a network name and external ports for
// publish entries that only name an internal port.
func ResolveSpec(spec common.ContainerSpec) (ResolvedSpec, error) {
	result := ResolvedSpec{}

	if spec.ImageName == "" {
		return result, validationErrorf("image_name is required")
	}

	ports, err := parsePublishInformation(spec.PublishInformation)
	if err != nil {
		return result, err
	}

	result.Image = spec.ImageName
	result.Name = spec.ContainerName
	if result.Name == "" {
		result.Name = "spawn-" + strings.ToLower(shortuuid.New())
	}

	result.Network = spec.ContainerNetwork
	if result.Network == "" {
		result.Network = "spawn-net-" + strings.ToLower(shortuuid.New())
	}

	for index := range ports {
		if ports[index].External == 0 {
			external, err := freePort()
			if err != nil {
				return result, err
			}
			ports[index].External = external
		}
	}
	result.Ports = ports

	for name, value := range spec.Environment {
		result.Env = append(result.Env, name+"="+value)
	}
	sort.Strings(result.Env)

	return result, nil
}

// parsePublishInformation is pure, every malformed entry is rejected
// here before the backend is ever contacted.
func parsePublishInformation(publish map[string]int) ([]interactor.PortMapping, error) {
	keys := make([]string, 0, len(publish))
	for key := range publish {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	mappings := []interactor.PortMapping{}
	for _, key := range keys {
		proto, portString := nat.SplitProtoPort(key)
		if proto != "tcp" && proto != "udp" {
			return nil, validationErrorf("unsupported protocol in port spec %q", key)
		}

		portNumber, err := nat.ParsePort(portString)
		if err != nil || portNumber < 1 || portNumber > 65535 {
			return nil, validationErrorf("invalid port in port spec %q", key)
		}

		external := publish[key]
		if external < 0 || external > 65535 {
			return nil, validationErrorf("invalid external port %v for port spec %q", external, key)
		}

		port, err := nat.NewPort(proto, portString)
		if err != nil {
			return nil, validationErrorf("invalid port spec %q", key)
		}

		mappings = append(mappings, interactor.PortMapping{Port: port, External: external})
	}

	return mappings, nil
}

func validateBatch(request common.BatchRequest) error {
	if len(request.ContainerIDs) == 0 {
		return validationErrorf("container_ids must not be empty")
	}

	if request.ContainerNetwork == "" {
		return validationErrorf("container_network is required")
	}

	return nil
}

// freePort asks the OS for an unused port so publish entries without
// an external mapping get a concrete, reportable address.
func freePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port, nil
}
