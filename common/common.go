package common

const (
	BACKEND_DOCKER     = "docker"
	BACKEND_KUBERNETES = "kubernetes"
)

const (
	STATE_CREATED = "created"
	STATE_RUNNING = "running"
	STATE_STOPPED = "stopped"
	STATE_DELETED = "deleted"
)

const (
	ERROR_VALIDATION          = "validation"
	ERROR_NOT_FOUND           = "not_found"
	ERROR_UNSUPPORTED         = "unsupported_operation"
	ERROR_BACKEND_UNAVAILABLE = "backend_unavailable"
	ERROR_READINESS_TIMEOUT   = "readiness_timeout"
)

// ContainerSpec is the creation intent sent by a client.
// PublishInformation maps "<port>/<protocol>" keys to desired
// external ports, 0 meaning "assign one for me".
type ContainerSpec struct {
	ImageName          string            `json:"image_name"`
	ContainerName      string            `json:"container_name,omitempty"`
	ContainerNetwork   string            `json:"container_network,omitempty"`
	PublishInformation map[string]int    `json:"publish_information,omitempty"`
	Environment        map[string]string `json:"environment,omitempty"`
}

// BatchRequest targets already-created containers. The network is
// required so the kubernetes backend can resolve service objects.
type BatchRequest struct {
	ContainerIDs     []string `json:"container_ids"`
	ContainerNetwork string   `json:"container_network"`
}

// Outcome is one entry of a batch result. Exactly one entry is
// produced per logical target, except for kubernetes delete which
// also reports every removed service object. A non-empty ErrorKind
// marks the entry as a failure.
type Outcome struct {
	ContainerID      string `json:"container_id"`
	ContainerNetwork string `json:"container_network,omitempty"`
	ContainerPort    int    `json:"container_port,omitempty"`
	ContainerIP      string `json:"container_ip,omitempty"`
	Status           string `json:"status,omitempty"`
	ErrorKind        string `json:"error_kind,omitempty"`
	Message          string `json:"message,omitempty"`
}

func (outcome *Outcome) Failed() bool {
	return outcome.ErrorKind != ""
}

// ContainerRecord is the normalized inspect result. State is read
// back from the backend on demand, the service keeps no store.
type ContainerRecord struct {
	ContainerID      string        `json:"container_id"`
	ContainerNetwork string        `json:"container_network"`
	BackendKind      string        `json:"backend_kind"`
	Ports            []PortBinding `json:"ports,omitempty"`
	State            string        `json:"state"`
}

type PortBinding struct {
	InternalPort int `json:"internal_port"`
	ExternalPort int `json:"external_port"`
}
