package main

import (
	"context"
	"log"
	"time"

	"github.com/appboost/bridge/cmd/abctl/cmd"
	"github.com/appboost/bridge/tracing"
)

func main() {
	tp, err := tracing.InitTracerProvider("appboost-bridge-abctl")
	if err != nil {
		log.Fatalf("Failed to initialize TracerProvider: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Printf("TracerProvider shutdown error: %v", err)
		}
	}()

	cmd.Execute()
}
