package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "facegreeter",
	Short: "A webcam face greeter powered by AI providers",
	Long: `Face Greeter recognizes people in front of a webcam and greets them by
name. It delegates face description, recognition, emotion analysis, and
chat to AI providers (Gemini, Claude, OpenAI, Ollama, or a local vision
server) with automatic fallback between them.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
