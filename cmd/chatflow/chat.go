package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/awoulbe/chatflow"
	"github.com/awoulbe/chatflow/pkg/domain"
	"github.com/awoulbe/chatflow/pkg/ports"
	"github.com/awoulbe/chatflow/pkg/validation"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session in the terminal",
	Long: `Runs a local conversation loop. Messages are classified and routed into
workflows; commands starting with / control the session (/cancel, /pause,
/resume, /back, /quit).`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runChat(cmd); err != nil {
			fmt.Printf("Chat failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	chatCmd.Flags().String("user", "local", "User id for the session")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command) error {
	logger := newLogger(cmd)
	eng, cleanup, err := buildEngine(cmd, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// Without a definitions file, seed a small purchase flow so the demo
	// has something to route into.
	if file, _ := cmd.Flags().GetString("file"); file == "" {
		if err := seedDemo(eng); err != nil {
			return err
		}
	}

	userID, _ := cmd.Flags().GetString("user")
	ctx := context.Background()
	reader := bufio.NewScanner(os.Stdin)

	fmt.Println("--- chatflow ---")
	fmt.Println("Tapez un message, ou /quit pour sortir.")

	for {
		fmt.Print("> ")
		if !reader.Scan() {
			break
		}
		line := strings.TrimSpace(reader.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, err := runChatCommand(ctx, eng, userID, line)
			if err != nil {
				fmt.Printf("! %v\n", err)
			}
			if done {
				return nil
			}
			continue
		}

		res, cls, err := eng.HandleMessage(ctx, userID, line)
		if err != nil {
			fmt.Printf("! %v\n", err)
			continue
		}
		if res != nil && res.Message != "" {
			fmt.Println(res.Message)
		}
		if res == nil && cls != nil {
			fmt.Printf("(intent: %s, confiance %.2f)\n", cls.Primary.Name, cls.Confidence)
		}
	}
	return reader.Err()
}

func runChatCommand(ctx context.Context, eng *chatflow.Engine, userID, line string) (bool, error) {
	switch line {
	case "/quit", "/exit":
		fmt.Println("Au revoir !")
		return true, nil
	case "/cancel":
		return false, eng.CancelWorkflow(ctx, userID, "cancelled by user")
	case "/pause":
		return false, eng.PauseWorkflow(ctx, userID)
	case "/resume":
		res, err := eng.ResumeWorkflow(ctx, userID)
		if err != nil {
			return false, err
		}
		if res.Message != "" {
			fmt.Println(res.Message)
		}
		return false, nil
	case "/back":
		res, err := eng.Rollback(ctx, userID, 1)
		if err != nil {
			return false, err
		}
		if res.Message != "" {
			fmt.Println(res.Message)
		}
		return false, nil
	default:
		return false, fmt.Errorf("commande inconnue %q", line)
	}
}

func seedDemo(eng *chatflow.Engine) error {
	eng.Handlers().Register("confirm_order", ports.HandlerFunc(func(ctx context.Context, wctx *domain.WorkflowContext, input string) (*domain.HandlerResult, error) {
		product, _ := wctx.Data["produit"].(string)
		return &domain.HandlerResult{
			Output: fmt.Sprintf("Commande enregistrée : %s, quantité %v.", product, wctx.Data["quantite"]),
		}, nil
	}))

	min := 1.0
	return eng.RegisterWorkflow(&domain.WorkflowDefinition{
		ID:           "purchase",
		Name:         "Achat guidé",
		InitialState: "ask_product",
		Active:       true,
		States: []domain.State{
			{ID: "ask_product", Type: domain.StateInput, Prompt: "Quel produit souhaitez-vous acheter ?", NextState: "ask_quantity",
				Rules: []validation.Rule{{Field: "produit", Type: validation.TypeString, Required: true}}},
			{ID: "ask_quantity", Type: domain.StateInput, Prompt: "Quelle quantité ?", NextState: "confirm",
				Rules: []validation.Rule{{Field: "quantite", Type: validation.TypeInteger, Required: true, Min: &min}}},
			{ID: "confirm", Type: domain.StateProcessing, Handler: "confirm_order", NextState: "done"},
			{ID: "done", Type: domain.StateCompleted, Prompt: "Merci pour votre achat !"},
		},
	})
}
