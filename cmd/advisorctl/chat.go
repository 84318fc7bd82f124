package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/advisor-chat/internal/conversation"
	"github.com/ashureev/advisor-chat/internal/domain"
	"github.com/spf13/cobra"
)

const greetingWait = 5 * time.Second

func newChatCmd() *cobra.Command {
	var vocabFile string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Run the onboarding conversation interactively",
		Long: `chat runs the same onboarding conversation as the web frontend.

Pick an option by typing its number. Type free text when the prompt asks for
it. /new starts a new chat and /quit exits.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, closer, err := dialAdvisor()
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			vocab := conversation.DefaultVocabulary(time.Now())
			if vocabFile != "" {
				if vocab, err = conversation.LoadVocabulary(vocabFile, time.Now()); err != nil {
					return err
				}
			}

			r := &repl{out: cmd.OutOrStdout(), greeted: make(chan struct{})}
			conv, err := conversation.New(cmd.Context(), conversation.Options{
				Client:        client,
				Vocabulary:    vocab,
				GreetingDelay: 0,
				Logger:        logger,
				Hooks: conversation.Hooks{
					OnAppend: r.print,
					OnReset:  r.reset,
				},
			})
			if err != nil {
				return err
			}
			defer conv.Close()

			return r.run(cmd, conv, cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVar(&vocabFile, "vocabulary", "", "YAML file overriding the assistant vocabulary")
	return cmd
}

// repl renders transcript messages and maps numbered input onto options.
type repl struct {
	mu      sync.Mutex
	out     io.Writer
	greeted chan struct{}
	once    sync.Once
}

func (r *repl) print(_ string, msg domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	who := "advisor"
	if msg.IsUser() {
		who = "you"
	}
	fmt.Fprintf(r.out, "%s> %s\n", who, msg.Content)
	for i, opt := range msg.Options {
		fmt.Fprintf(r.out, "  [%d] %s\n", i+1, opt)
	}
	if !msg.IsUser() {
		r.once.Do(func() { close(r.greeted) })
	}
}

func (r *repl) reset(sid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "--- new chat (%s) ---\n", sid)
}

func (r *repl) run(cmd *cobra.Command, conv *conversation.Conversation, in io.Reader) error {
	select {
	case <-r.greeted:
	case <-time.After(greetingWait):
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	}

	ctx := cmd.Context()
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/new":
			if err := conv.Reset(ctx); err != nil {
				return err
			}
			continue
		}

		snap := conv.Snapshot()
		var (
			res conversation.TurnResult
			err error
		)
		if n, convErr := strconv.Atoi(line); convErr == nil && n >= 1 && n <= len(snap.ActiveOptions) {
			res, err = conv.SubmitOption(ctx, snap.ActiveOptions[n-1])
		} else {
			res, err = conv.SubmitText(ctx, line)
		}
		if err != nil {
			return err
		}

		r.mu.Lock()
		if res.OpenURL != "" {
			fmt.Fprintf(r.out, "open: %s\n", res.OpenURL)
		}
		if !res.Accepted {
			fmt.Fprintf(r.out, "(%s)\n", conv.Snapshot().InputHint)
		}
		r.mu.Unlock()
	}
	return scanner.Err()
}
