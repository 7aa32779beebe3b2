package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"facegreeter/internal/config"
	"facegreeter/internal/recognition"
	"facegreeter/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Greeter web server.
The server hosts the camera frontend, the recognition polling loop, and
the HTTP API for enrollment, recognition, emotion analysis, and chat.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, backend, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	fmt.Printf("Using %s storage backend\n", backend)

	chain, err := buildChain(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("Provider chain: ")
	for i, p := range chain.Providers() {
		if i > 0 {
			fmt.Printf(" -> ")
		}
		fmt.Printf("%s", p.Name())
	}
	fmt.Println()

	frames := recognition.NewFrameBuffer()
	broadcaster := recognition.NewBroadcaster()
	engine := recognition.NewEngine(chain, st, frames, broadcaster, cfg.Recognition.Interval, cfg.Recognition.GreetingTimeout)

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(ctx, cfg, st, chain, engine, frames, broadcaster, host, port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Greeter on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
