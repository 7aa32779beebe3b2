package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"facegreeter/internal/config"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured providers and probe their reachability",
	RunE:  runProviders,
}

func init() {
	rootCmd.AddCommand(providersCmd)
}

func runProviders(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	chain, err := buildChain(ctx, cfg)
	if err != nil {
		return err
	}

	fmt.Println("Provider chain (in fallback order):")
	for i, p := range chain.Providers() {
		status := "configured"
		if probe, ok := p.(interface{ Reachable(context.Context) bool }); ok {
			if probe.Reachable(ctx) {
				status = "reachable"
			} else {
				status = "unreachable"
			}
		}
		fmt.Printf("  %d. %-14s %s\n", i+1, p.Name(), status)
	}
	return nil
}
