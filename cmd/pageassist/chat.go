package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"pageassist/internal/chat"
)

var (
	chatModel  string
	chatMode   string
	chatURL    string
	chatPrompt string

	cyan = color.New(color.FgCyan).SprintFunc()
	gray = color.New(color.FgHiBlack).SprintFunc()
	red  = color.New(color.FgRed).SprintFunc()
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp(cfg)
		if err != nil {
			return err
		}
		model := chatModel
		if model == "" {
			model = cfg.DefaultModel
		}
		if model == "" {
			return fmt.Errorf("no model selected; pass --model or set default_model")
		}
		return runREPL(cmd.Context(), application, model)
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatModel, "model", "m", "", "model or provider id to chat with")
	chatCmd.Flags().StringVar(&chatMode, "mode", string(chat.ModeNormal), "chat mode (normal, vision, rag, websearch, preset)")
	chatCmd.Flags().StringVar(&chatURL, "url", "", "page to ground answers in (rag mode)")
	chatCmd.Flags().StringVar(&chatPrompt, "prompt", "", "stored prompt id to apply")
}

func runREPL(ctx context.Context, application *app, model string) error {
	fmt.Printf("Chatting with %s. Type /quit to exit, Ctrl-C to stop a streaming answer.\n", cyan(model))

	// Ctrl-C cancels the in-flight answer instead of the whole process.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)
	go func() {
		for range interrupts {
			application.orchestrator.StopStreaming()
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	sessionID := ""
	pageURL := chatURL

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/new":
			sessionID = ""
			fmt.Println(gray("started a new session"))
			continue
		case line == "/regen":
			outcome, err := application.orchestrator.RegenerateLast(ctx, sessionID, model, printEvent)
			reportOutcome(outcome, err)
			continue
		case strings.HasPrefix(line, "/edit "):
			if err := editCommand(ctx, application, sessionID, model, line); err != nil {
				fmt.Println(red("error: " + err.Error()))
			}
			continue
		}

		turn := chat.Turn{
			SessionID: sessionID,
			Model:     model,
			Message:   line,
			Mode:      chat.Mode(chatMode),
			PageURL:   pageURL,
			PromptID:  chatPrompt,
		}
		outcome, err := application.orchestrator.Submit(ctx, turn, printEvent)
		reportOutcome(outcome, err)
		if outcome != nil && outcome.SessionID != "" {
			sessionID = outcome.SessionID
		}
		// The page is indexed on first use; later turns reuse the stored
		// passages.
		pageURL = ""
	}
}

// editCommand handles "/edit <index> <text>", rewriting the user message at
// index, dropping everything after it, and streaming a fresh answer.
func editCommand(ctx context.Context, application *app, sessionID, model, line string) error {
	if sessionID == "" {
		return fmt.Errorf("no active session")
	}
	parts := strings.SplitN(strings.TrimPrefix(line, "/edit "), " ", 2)
	if len(parts) != 2 {
		return fmt.Errorf("usage: /edit <index> <text>")
	}
	index, err := strconv.Atoi(parts[0])
	if err != nil {
		return fmt.Errorf("invalid message index %q", parts[0])
	}
	outcome, err := application.orchestrator.EditMessage(ctx, sessionID, index, parts[1], true, model, printEvent)
	if err != nil {
		return err
	}
	reportOutcome(outcome, nil)
	return nil
}

func printEvent(event chat.Event) {
	switch event.Type {
	case chat.EventDelta:
		fmt.Print(event.Delta)
	case chat.EventSources:
		fmt.Println(gray(fmt.Sprintf("[%d sources]", len(event.Sources))))
	case chat.EventDone:
		fmt.Println()
	}
}

func reportOutcome(outcome *chat.Outcome, err error) {
	if err != nil {
		fmt.Println(red("error: " + err.Error()))
		return
	}
	if outcome != nil && outcome.State == chat.StateCancelled {
		fmt.Println()
		fmt.Println(gray("stopped"))
	}
}
