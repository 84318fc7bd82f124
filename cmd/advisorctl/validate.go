package main

import (
	"fmt"
	"strings"

	"github.com/ashureev/advisor-chat/internal/advisor"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <concentration>",
		Short: "Resolve a concentration name to its canonical form",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closer, err := dialAdvisor()
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			raw := strings.Join(args, " ")
			canonical, err := client.ValidateConcentration(cmd.Context(), raw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), canonical)
			return nil
		},
	}
}

func newAskCmd() *cobra.Command {
	var (
		year          string
		semester      string
		concentration string
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question in a fresh advisory session",
		Long: `ask opens a new advisory session, optionally submits a profile, and
prints the answer to one question. Use chat for the full onboarding flow.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closer, err := dialAdvisor()
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			ctx := cmd.Context()
			sid := "session_" + uuid.NewString()
			if err := client.InitSession(ctx, sid); err != nil {
				return err
			}
			if concentration != "" {
				if err := client.SetContext(ctx, sid, advisor.ContextData{
					Concentration: concentration,
					GradeLevel:    year,
					Semester:      semester,
				}); err != nil {
					return err
				}
			}

			answer, err := client.Answer(ctx, sid, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if answer.Failed() {
				return fmt.Errorf("advisor error: %s", answer.Error)
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer.Response)
			return nil
		},
	}
	cmd.Flags().StringVar(&year, "year", "", "class year (Freshman, Sophomore, Junior, Senior)")
	cmd.Flags().StringVar(&semester, "semester", "", "semester being planned, e.g. \"Fall 2026\"")
	cmd.Flags().StringVar(&concentration, "concentration", "", "canonical concentration name")
	return cmd
}
