// Package main starts the ml-server HTTP process: a chi router backed by
// a MongoDB client and a Redis cache, all configured from the environment.
package main

import (
	"fmt"
	"log"

	"ml-server/internal/app"
	"ml-server/internal/config"
)

func main() {
	if err := run("."); err != nil {
		log.Fatal(err)
	}
}

// run blocks until the server is told to stop. Configuration errors,
// such as a missing or non-numeric REDIS_PORT, are returned before any
// client is built.
func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	application, err := app.NewApp(cfg)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	return application.Run()
}
