package processor

import (
	"context"
	"log"
	"sync"

	"github.com/browseterm/go-spawner/common"
	"github.com/browseterm/go-spawner/processor/interactor"
)

// Processor fans lifecycle operations out to the configured backend.
// It owns no state of its own, every answer is read back from the
// backend on demand.
type Processor struct {
	Interactor interactor.ContainerInteractor

	MaxJobs int
}

// CreateContainer resolves the spec, makes sure the network exists and
// issues a single backend create. The result is always a sequence, the
// kubernetes backend yields one entry per published port.
func (processor *Processor) CreateContainer(ctx context.Context, spec common.ContainerSpec) ([]common.Outcome, error) {
	resolved, err := ResolveSpec(spec)
	if err != nil {
		return nil, err
	}

	log.Printf("Creating container %v on network %v", resolved.Name, resolved.Network)

	if err := processor.Interactor.EnsureNetwork(ctx, resolved.Network); err != nil {
		return []common.Outcome{failureOutcome(resolved.Name, err)}, nil
	}

	options := interactor.CreateOptions{
		Image:   resolved.Image,
		Name:    resolved.Name,
		Network: resolved.Network,
		Ports:   resolved.Ports,
		Env:     resolved.Env,
	}

	results, err := processor.Interactor.CreateContainer(ctx, options)
	if err != nil {
		return []common.Outcome{failureOutcome(resolved.Name, err)}, nil
	}

	outcomes := make([]common.Outcome, 0, len(results))
	for _, result := range results {
		outcomes = append(outcomes, outcomeFromCreate(result))
	}

	return outcomes, nil
}

func (processor *Processor) StartContainers(ctx context.Context, request common.BatchRequest) ([]common.Outcome, error) {
	return processor.runBatch(ctx, interactor.OP_START, request)
}

func (processor *Processor) StopContainers(ctx context.Context, request common.BatchRequest) ([]common.Outcome, error) {
	return processor.runBatch(ctx, interactor.OP_STOP, request)
}

func (processor *Processor) DeleteContainers(ctx context.Context, request common.BatchRequest) ([]common.Outcome, error) {
	return processor.runBatch(ctx, interactor.OP_DELETE, request)
}

func (processor *Processor) InspectContainer(ctx context.Context, id string, network string) (common.ContainerRecord, error) {
	return processor.Interactor.InspectContainer(ctx, id, network)
}

// runBatch executes one operation against every target. Targets are
// independent: failures are recorded per target and never abort
// siblings. Completions are buffered per input index so the result
// order always matches the request order.
func (processor *Processor) runBatch(ctx context.Context, operation string, request common.BatchRequest) ([]common.Outcome, error) {
	if err := validateBatch(request); err != nil {
		return nil, err
	}

	if !processor.Interactor.Supports(operation) {
		outcomes := make([]common.Outcome, 0, len(request.ContainerIDs))
		for _, id := range request.ContainerIDs {
			outcomes = append(outcomes, failureOutcome(id, interactor.ErrUnsupported))
		}
		return outcomes, nil
	}

	buffered := make([][]common.Outcome, len(request.ContainerIDs))

	workers := processor.MaxJobs
	if workers < 1 {
		workers = 1
	}
	if workers > len(request.ContainerIDs) {
		workers = len(request.ContainerIDs)
	}

	jobs := make(chan int)
	var waitGroup sync.WaitGroup
	for worker := 0; worker < workers; worker++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			for index := range jobs {
				id := request.ContainerIDs[index]

				// a cancelled request lets in-flight calls finish
				// but dispatches nothing new
				if ctx.Err() != nil {
					buffered[index] = []common.Outcome{failureOutcome(id, ctx.Err())}
					continue
				}

				buffered[index] = processor.executeTarget(ctx, operation, id, request.ContainerNetwork)
			}
		}()
	}

	for index := range request.ContainerIDs {
		jobs <- index
	}
	close(jobs)
	waitGroup.Wait()

	outcomes := []common.Outcome{}
	for _, entries := range buffered {
		outcomes = append(outcomes, entries...)
	}

	return outcomes, nil
}

func (processor *Processor) executeTarget(ctx context.Context, operation string, id string, network string) []common.Outcome {
	switch operation {
	case interactor.OP_START:
		result, err := processor.Interactor.StartContainer(ctx, id, network)
		if err != nil {
			return []common.Outcome{failureOutcome(id, err)}
		}
		return []common.Outcome{outcomeFromAddress(result)}

	case interactor.OP_STOP:
		result, err := processor.Interactor.StopContainer(ctx, id)
		if err != nil {
			return []common.Outcome{failureOutcome(id, err)}
		}
		return []common.Outcome{outcomeFromStatus(result)}

	case interactor.OP_DELETE:
		results, err := processor.Interactor.DeleteContainer(ctx, id, network)
		outcomes := make([]common.Outcome, 0, len(results))
		for _, result := range results {
			outcomes = append(outcomes, outcomeFromStatus(result))
		}
		if err != nil {
			outcomes = append(outcomes, failureOutcome(id, err))
		}
		return outcomes
	}

	log.Printf("Unknown batch operation %v", operation)
	return []common.Outcome{failureOutcome(id, interactor.ErrUnsupported)}
}
