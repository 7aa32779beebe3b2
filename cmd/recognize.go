package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"facegreeter/internal/ai"
	"facegreeter/internal/config"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image>",
	Short: "Recognize a face in an image against the enrolled users",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)
}

func runRecognize(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	st, _, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	chain, err := buildChain(ctx, cfg)
	if err != nil {
		return err
	}

	users, err := st.Users().List(ctx)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}
	if len(users) == 0 {
		return fmt.Errorf("no enrolled users, run enroll first")
	}

	frame, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	candidates := make([]ai.Candidate, 0, len(users))
	for _, u := range users {
		candidates = append(candidates, ai.Candidate{ID: u.ID, Name: u.Name, FaceDescription: u.FaceDescription})
	}

	match, provider := chain.RecognizeUser(ctx, frame, candidates)
	if !match.Matched {
		fmt.Println("No match")
		return nil
	}

	var name string
	for _, u := range users {
		if u.ID == match.UserID {
			name = u.Name
		}
	}
	fmt.Printf("Matched: %s (confidence %.2f, via %s)\n", name, match.Confidence, provider)
	if match.Greeting != "" {
		fmt.Printf("Greeting: %s\n", match.Greeting)
	}
	if match.Reasoning != "" {
		fmt.Printf("Reasoning: %s\n", match.Reasoning)
	}
	return nil
}
