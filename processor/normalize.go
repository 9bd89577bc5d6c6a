package processor

import (
	"errors"

	"github.com/browseterm/go-spawner/common"
	"github.com/browseterm/go-spawner/processor/interactor"
)

// Normalization of backend-native results into the uniform outcome
// shape. Backend status text with a single accepted value ("deleted
// pod", "deleted service") is preserved as-is.

func outcomeFromCreate(result interactor.CreateResult) common.Outcome {
	return common.Outcome{
		ContainerID:      result.ID,
		ContainerNetwork: result.Network,
		ContainerPort:    result.Port,
	}
}

func outcomeFromAddress(result interactor.AddressInfo) common.Outcome {
	return common.Outcome{
		ContainerID: result.ID,
		ContainerIP: result.IP,
	}
}

func outcomeFromStatus(result interactor.StatusResult) common.Outcome {
	return common.Outcome{
		ContainerID:      result.ID,
		ContainerNetwork: result.Network,
		Status:           result.Status,
	}
}

func failureOutcome(id string, err error) common.Outcome {
	return common.Outcome{
		ContainerID: id,
		ErrorKind:   errorKind(err),
		Message:     err.Error(),
	}
}

func errorKind(err error) string {
	validation := &ValidationError{}

	switch {
	case errors.Is(err, interactor.ErrNotFound):
		return common.ERROR_NOT_FOUND
	case errors.Is(err, interactor.ErrUnsupported):
		return common.ERROR_UNSUPPORTED
	case errors.Is(err, interactor.ErrReadinessTimeout):
		return common.ERROR_READINESS_TIMEOUT
	case errors.Is(err, interactor.ErrNameConflict), errors.As(err, &validation):
		return common.ERROR_VALIDATION
	}
	return common.ERROR_BACKEND_UNAVAILABLE
}
