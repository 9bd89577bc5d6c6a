package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/browseterm/go-spawner/api/controller"
	"github.com/browseterm/go-spawner/common"
	"github.com/browseterm/go-spawner/processor"
	"github.com/browseterm/go-spawner/processor/interactor"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
)

func main() {
	log.Println("Starting Spawner API service")

	err := godotenv.Load(".env")
	if err != nil {
		log.Println("No .env file found")
	}

	containerProcessor, err := initProcessor()
	if err != nil {
		log.Fatalf("Failed to initialize Processor: %v", err)
	}

	app := fiber.New()

	app.Use(
		logger.New(),
	)

	apiController := controller.Controller{}
	apiController.Init(containerProcessor)

	app.Post("/create", apiController.HandleCreate)
	app.Post("/start", apiController.HandleStart)
	app.Post("/stop", apiController.HandleStop)
	app.Post("/delete", apiController.HandleDelete)
	app.Get("/inspect/:id", apiController.HandleInspect)
	app.Get("/ping", apiController.HandlePing)
	app.Post("/ping", apiController.HandlePing)

	port := os.Getenv("API_PORT")
	if port == "" {
		port = "9000"
	}

	log.Fatal(app.Listen(":" + port))
}

func initProcessor() (*processor.Processor, error) {
	maxJobs, err := strconv.Atoi(os.Getenv("MAX_CONCURRENT_JOBS"))
	if err != nil {
		return nil, err
	}

	containerInteractor, err := initInteractor()
	if err != nil {
		return nil, err
	}

	return &processor.Processor{
		Interactor: containerInteractor,
		MaxJobs:    maxJobs,
	}, nil
}

func initInteractor() (interactor.ContainerInteractor, error) {
	backend := os.Getenv("CONTAINER_BACKEND")

	numberString := os.Getenv("BACKEND_RETRY_COOLDOWN")
	retryCooldown, err := strconv.Atoi(numberString)
	if err != nil {
		return nil, err
	}

	numberString = os.Getenv("BACKEND_RETRY_TIMES")
	retryAttempts, err := strconv.Atoi(numberString)
	if err != nil {
		return nil, err
	}

	switch backend {
	case common.BACKEND_DOCKER:
		log.Println("Starting on docker")
		return interactor.CreateDockerInteractor(interactor.DockerInteractorOptions{
			RetryCooldown: time.Duration(retryCooldown) * time.Millisecond,
			RetryAttempts: retryAttempts,
		})
	case common.BACKEND_KUBERNETES:
		log.Println("Starting on kubernetes")

		numberString = os.Getenv("READINESS_POLL_COOLDOWN")
		readinessInterval, err := strconv.Atoi(numberString)
		if err != nil {
			return nil, err
		}

		numberString = os.Getenv("READINESS_TIMEOUT")
		readinessTimeout, err := strconv.Atoi(numberString)
		if err != nil {
			return nil, err
		}

		return interactor.CreateKubernetesInteractor(interactor.KubernetesInteractorOptions{
			ReadinessInterval: time.Duration(readinessInterval) * time.Millisecond,
			ReadinessTimeout:  time.Duration(readinessTimeout) * time.Millisecond,
			RetryCooldown:     time.Duration(retryCooldown) * time.Millisecond,
			RetryAttempts:     retryAttempts,
		})
	default:
		log.Fatalf("Unknown container backend: %v", backend)
	}

	return nil, nil
}
