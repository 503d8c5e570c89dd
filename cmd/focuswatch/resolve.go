package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"focuswatch/internal/champselect"
)

func newResolveCmd(env *cliEnv) *cobra.Command {
	var cellID int

	cmd := &cobra.Command{
		Use:   "resolve <session.json>",
		Short: "Resolve champion and role from a saved champion-select session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			sess, err := champselect.Parse(data)
			if err != nil {
				return fmt.Errorf("failed to parse session: %w", err)
			}

			res := champselect.ResolveLocal(sess)
			if cmd.Flags().Changed("cell") {
				res = champselect.Resolve(sess, cellID)
			}

			out := cmd.OutOrStdout()
			if !res.Resolved() {
				fmt.Fprintf(out, "no champion yet, role %s\n", res.Role)
				return nil
			}
			fmt.Fprintf(out, "champion %d, role %s (detected: %v)\n", res.ChampionID, res.Role, res.RoleDetected)
			return nil
		},
	}
	cmd.Flags().IntVar(&cellID, "cell", 0, "resolve for this cell instead of the local player")
	return cmd
}
