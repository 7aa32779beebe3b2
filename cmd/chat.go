package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"facegreeter/internal/ai"
	"facegreeter/internal/config"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant through the provider chain",
	Long: `Interactive chat session on stdin. Type a message and press enter;
type "exit" or press Ctrl+D to quit.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	chain, err := buildChain(ctx, cfg)
	if err != nil {
		return err
	}

	fmt.Println("Chat session started. Type 'exit' to quit.")

	var history []ai.ChatTurn
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}
		if message == "exit" || message == "quit" {
			break
		}

		reply, provider := chain.Chat(ctx, cfg.Recognition.Persona, history, message)
		if provider != "" {
			fmt.Printf("[%s] %s\n", provider, reply)
		} else {
			fmt.Println(reply)
		}

		history = append(history,
			ai.ChatTurn{Role: "user", Content: message},
			ai.ChatTurn{Role: "assistant", Content: reply},
		)
	}
	fmt.Println("Bye!")
	return scanner.Err()
}
