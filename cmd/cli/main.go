package main

import (
	"log"
	"os"

	"docchat-be/internal/bootstrap"
	"docchat-be/internal/cli"
	"docchat-be/internal/config"
	"docchat-be/internal/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()

	sysLogger := logger.NewConsoleLogger(os.Getenv("DOCCHAT_VERBOSE") != "")
	defer sysLogger.Sync()

	container, err := bootstrap.NewContainer(cfg, sysLogger)
	if err != nil {
		log.Printf("bootstrap: %v", err)
		return 1
	}
	defer container.Close()

	cli.SetServices(container.DocumentService, container.ChatService)
	if err := cli.Execute(); err != nil {
		return 1
	}
	return 0
}
