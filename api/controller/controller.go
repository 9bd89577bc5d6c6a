package controller

import (
	"context"
	"errors"
	"log"

	"github.com/browseterm/go-spawner/common"
	"github.com/browseterm/go-spawner/processor"
	"github.com/browseterm/go-spawner/processor/interactor"
	"github.com/gofiber/fiber/v2"
)

// Controller is the thin request layer: it parses bodies, hands the
// validated command to the processor and maps the outcome set to an
// HTTP status. It never talks to a backend itself.
type Controller struct {
	processor *processor.Processor
}

func (controller *Controller) Init(processor *processor.Processor) {
	controller.processor = processor
}

func (controller *Controller) HandleCreate(c *fiber.Ctx) error {
	spec := common.ContainerSpec{}
	if err := c.BodyParser(&spec); err != nil {
		log.Printf("Create body parse error: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed request body"})
	}

	outcomes, err := controller.processor.CreateContainer(c.Context(), spec)
	if err != nil {
		return controller.handleRequestError(c, err)
	}

	return c.Status(overallStatus(outcomes)).JSON(outcomes)
}

func (controller *Controller) HandleStart(c *fiber.Ctx) error {
	return controller.handleBatch(c, controller.processor.StartContainers)
}

func (controller *Controller) HandleStop(c *fiber.Ctx) error {
	return controller.handleBatch(c, controller.processor.StopContainers)
}

func (controller *Controller) HandleDelete(c *fiber.Ctx) error {
	return controller.handleBatch(c, controller.processor.DeleteContainers)
}

func (controller *Controller) HandleInspect(c *fiber.Ctx) error {
	id := c.Params("id")
	network := c.Query("network")
	if network == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "network query parameter is required"})
	}

	record, err := controller.processor.InspectContainer(c.Context(), id, network)
	if err != nil {
		if errors.Is(err, interactor.ErrNotFound) {
			return c.SendStatus(fiber.StatusNotFound)
		}
		log.Printf("Inspect error: %v", err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(record)
}

func (controller *Controller) HandlePing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"response": "pong"})
}

type batchOperation func(ctx context.Context, request common.BatchRequest) ([]common.Outcome, error)

func (controller *Controller) handleBatch(c *fiber.Ctx, operation batchOperation) error {
	request := common.BatchRequest{}
	if err := c.BodyParser(&request); err != nil {
		log.Printf("Batch body parse error: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed request body"})
	}

	outcomes, err := operation(c.Context(), request)
	if err != nil {
		return controller.handleRequestError(c, err)
	}

	return c.Status(overallStatus(outcomes)).JSON(outcomes)
}

func (controller *Controller) handleRequestError(c *fiber.Ctx, err error) error {
	validation := &processor.ValidationError{}
	if errors.As(err, &validation) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validation.Message})
	}

	log.Printf("Request error: %v", err)
	return c.SendStatus(fiber.StatusInternalServerError)
}

// overallStatus maps the outcome set to one HTTP status: every target
// succeeded, every target failed, or a mix of both. Clients still have
// to inspect each entry, partial failure is normal for batches.
func overallStatus(outcomes []common.Outcome) int {
	failures := 0
	for index := range outcomes {
		if outcomes[index].Failed() {
			failures++
		}
	}

	switch {
	case failures == 0:
		return fiber.StatusOK
	case failures == len(outcomes):
		return fiber.StatusBadGateway
	}
	return fiber.StatusMultiStatus
}
