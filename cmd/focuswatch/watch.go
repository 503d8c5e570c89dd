package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"focuswatch/internal/autoimport"
	"focuswatch/internal/monitor"
	"focuswatch/internal/wire"
)

func newWatchCmd(env *cliEnv) *cobra.Command {
	var (
		overlayAddr string
		autoImport  bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Monitor the client and print phase changes and live stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if overlayAddr != "" {
				env.cfg.Overlay.Addr = overlayAddr
			}
			if cmd.Flags().Changed("auto-import") {
				env.cfg.Preferences.AutoImport = autoImport
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			stack, err := wire.New(ctx, env.cfg, env.configPath, env.log)
			if err != nil {
				return err
			}
			defer stack.Close()

			out := cmd.OutOrStdout()
			unsubscribe := stack.Monitor.Subscribe(func(ev monitor.Event) {
				if line := formatEvent(ev); line != "" {
					fmt.Fprintf(out, "%s %s\n", dimStyle.Render(time.Now().Format("15:04:05")), line)
				}
			})
			defer unsubscribe()

			if err := stack.Start(ctx); err != nil {
				return err
			}
			st := stack.Monitor.State()
			fmt.Fprintf(out, "watching (%s, %s / %s)\n", st, st.Role, st.Bracket)

			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&overlayAddr, "overlay", "", "serve the browser overlay on this address, e.g. 127.0.0.1:8765")
	cmd.Flags().BoolVar(&autoImport, "auto-import", false, "import runes and items when a champion is picked")
	return cmd
}

// formatEvent renders one monitor event. Transition events are skipped
// because state-changed carries the same phases.
func formatEvent(ev monitor.Event) string {
	switch e := ev.(type) {
	case monitor.StateChanged:
		line := fmt.Sprintf("%s -> %s", e.PreviousPhase, phaseStyle.Render(e.NewPhase.String()))
		if e.ChampionID != nil && e.Role != nil {
			line += dimStyle.Render(fmt.Sprintf(" champion %d %s", *e.ChampionID, *e.Role))
		}
		return line
	case monitor.StatsUpdated:
		return fmt.Sprintf("%d cs @ %s  %.1f/min vs %.1f  %s",
			e.CurrentCS, clockTime(e.GameTimeSeconds), e.CSPerMinute, e.TargetRate, renderBand(e.Band, e.Delta))
	case monitor.ChampionResolved:
		if !e.Changed {
			return ""
		}
		detected := "assumed"
		if e.RoleDetected {
			detected = "detected"
		}
		return fmt.Sprintf("champion %d as %s (%s)", e.ChampionID, e.Role, detected)
	case autoimport.ImportFinished:
		return fmt.Sprintf("imported champion %d: %s", e.ChampionID, e.Message)
	case autoimport.ImportFailed:
		return errorStyle.Render(fmt.Sprintf("import failed for champion %d: %s", e.ChampionID, e.Error))
	default:
		return ""
	}
}

func clockTime(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
