package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/awoulbe/chatflow/internal/loader"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a definitions file for consistency",
	Long:  `Parses the YAML file and runs every workflow and intent definition through registration, reporting the first problem found.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(cmd, args); err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Definitions are valid.")
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	if file == "" && len(args) > 0 {
		file = args[0]
		_ = cmd.Flags().Set("file", file)
	}
	if file == "" {
		return fmt.Errorf("no definitions file given (use --file)")
	}

	cat, err := loader.LoadFile(file)
	if err != nil {
		return err
	}

	logger := newLogger(cmd)
	eng, cleanup, err := buildEngine(cmd, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// buildEngine already registered the file's workflows and intents; what
	// remains is cross-checking that every intent points at a known workflow.
	for _, def := range cat.Intents {
		if def.WorkflowID == "" {
			continue
		}
		if _, ok := eng.Runtime().Workflow(def.WorkflowID); !ok {
			return fmt.Errorf("intent %q references unknown workflow %q", def.Name, def.WorkflowID)
		}
	}

	fmt.Printf("%d workflow(s), %d intent(s)\n", len(cat.Workflows), len(cat.Intents))
	return nil
}
