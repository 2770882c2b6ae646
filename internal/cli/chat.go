package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/agentgate/agentgate/internal/config"
	"github.com/agentgate/agentgate/internal/engine"
	"github.com/agentgate/agentgate/internal/provider"
	"github.com/agentgate/agentgate/internal/session"
	"github.com/agentgate/agentgate/internal/tools"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	chatMessage string
	chatUnsafe  bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the agent directly in CLI",
	Run:   runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Message to send to the agent")
	chatCmd.Flags().BoolVar(&chatUnsafe, "unsafe", false, "Run terminal commands without confirmation")
}

func runChat(cmd *cobra.Command, args []string) {
	if chatMessage == "" {
		fmt.Println("Error: --message is required")
		os.Exit(1)
	}

	printHeader("🤖 AgentGate Chat")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config warning: %v (using defaults)\n", err)
		cfg = config.DefaultConfig()
	}

	store := session.NewStore(nil)
	prov := provider.NewOpenAIProvider(cfg.Provider.APIKey, cfg.Provider.APIBase, cfg.Model.Name)
	eng := engine.New(engine.Options{
		Store:    store,
		Provider: prov,
		Tools: tools.NewFactory(tools.FactoryOptions{
			TerminalTimeoutSeconds: cfg.Tools.Terminal.TimeoutSeconds,
			SearchMaxResults:       cfg.Tools.Search.MaxResults,
		}),
		Model:            cfg.Model.Name,
		MaxTokens:        cfg.Model.MaxTokens,
		Temperature:      cfg.Model.Temperature,
		MaxIterations:    cfg.Model.MaxToolIterations,
		SystemPrompt:     cfg.Model.SystemPrompt,
		CommentOnDecline: cfg.Model.CommentOnDecline,
	})

	safeMode := cfg.Gateway.SafeMode && !chatUnsafe
	sid := store.Create()
	ctx := context.Background()

	fmt.Printf("🤖 AgentGate (%s)\n", cfg.Model.Name)
	fmt.Println("Thinking...")

	res, err := eng.RunTurn(ctx, sid, engine.TurnInput{UserInput: chatMessage}, safeMode)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	// Confirmation prompts loop until the turn settles without a pending
	// command.
	reader := bufio.NewReader(os.Stdin)
	for res.Pending != nil {
		fmt.Printf("\n%s %s\n", color.YellowString("Confirm command:"), res.Pending.Command)
		fmt.Print("Run it? [y/N] ")
		answer, _ := reader.ReadString('\n')

		input := engine.TurnInput{Reject: true}
		if strings.EqualFold(strings.TrimSpace(answer), "y") {
			input = engine.TurnInput{ConfirmedCommand: res.Pending.Command}
		}
		res, err = eng.RunTurn(ctx, sid, input, safeMode)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	}

	for _, msg := range res.NewMessages {
		if msg.Role == session.RoleAssistant && msg.Content != "" {
			fmt.Println("\n" + msg.Content)
		}
	}
}
