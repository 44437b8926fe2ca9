package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docsift/docsift/internal/session"
	"github.com/docsift/docsift/internal/ui"
)

func newAskCmd() *cobra.Command {
	var flags searchFlags
	var sessionPath string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask questions against the index, keeping conversation state",
		Long: `Runs retrieval for each question and records questions and retrieved
evidence in a conversation. With no arguments, reads questions
interactively from stdin until EOF or "exit".

The conversation is owned by this invocation; two concurrent ask
sessions never share state. Use --session to persist the conversation
to a file and resume it later.

Examples:
  docsift ask "what is the refund policy"
  docsift ask --session support.json
  docsift ask "warranty length" --floor 0.4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, args, &flags, sessionPath)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&sessionPath, "session", "", "Conversation file to resume and persist")
	return cmd
}

func runAsk(cmd *cobra.Command, args []string, flags *searchFlags, sessionPath string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	eng, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	conversation := session.NewConversation()
	if sessionPath != "" {
		if resumed, err := session.Load(sessionPath); err == nil {
			conversation = resumed
		}
	}

	printer := ui.NewPrinter(cmd.OutOrStdout())
	opts := flags.apply(cmd, searchOptions(cfg))

	ask := func(question string) error {
		conversation.AddQuestion(question)

		outcome, err := eng.pipeline.Search(ctx, question, opts)
		if err != nil {
			return err
		}

		conversation.AddOutcome(outcome)
		printer.Outcome(question, outcome)
		return nil
	}

	if len(args) > 0 {
		if err := ask(strings.Join(args, " ")); err != nil {
			return err
		}
	} else {
		if err := askInteractive(cmd, ask); err != nil {
			return err
		}
	}

	if sessionPath != "" {
		return conversation.Save(sessionPath)
	}
	return nil
}

// askInteractive reads questions line by line until EOF or "exit".
func askInteractive(cmd *cobra.Command, ask func(string) error) error {
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())

	for {
		fmt.Fprint(out, "? ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			return nil
		}

		if err := ask(question); err != nil {
			return err
		}
	}
}
