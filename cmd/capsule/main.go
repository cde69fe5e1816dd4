package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ryan258/insight-capsule/internal/domain"
	"github.com/ryan258/insight-capsule/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	root := &cobra.Command{
		Use:   "capsule",
		Short: "Voice-to-insight capture and search",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file")

	root.AddCommand(
		recordCmd(&cfgPath),
		searchCmd(&cfgPath),
		draftCmd(&cfgPath),
		listCmd(&cfgPath),
		rebuildCmd(&cfgPath),
		tuiCmd(&cfgPath),
	)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func recordCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "record",
		Short: "Capture a voice note and synthesize an insight capsule",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.orch.Close()

			events, unsubscribe := a.orch.Subscribe(32)
			defer unsubscribe()
			done := make(chan error, 1)
			go func() {
				for ev := range events {
					switch ev.Kind {
					case domain.EventRecordingStarted:
						fmt.Println("🎙️  Recording... press Enter to stop.")
					case domain.EventRecordingStopped:
						fmt.Println("🛑 Recording stopped, processing...")
					case domain.EventStageChanged:
						fmt.Printf("   %s...\n", ev.Stage)
					case domain.EventComplete:
						fmt.Printf("🎉 Insight saved: %s\n", ev.InsightID)
						done <- nil
						return
					case domain.EventFailed:
						done <- ev.Err
						return
					}
				}
			}()

			ctx := cmd.Context()
			if err := a.orch.StartCapture(ctx); err != nil {
				return err
			}
			go func() {
				bufio.NewScanner(os.Stdin).Scan()
				if err := a.orch.StopCapture(ctx); err != nil && !errors.Is(err, domain.ErrNotRecording) {
					a.logger.Printf("stop: %v", err)
				}
			}()

			if err := <-done; err != nil {
				return err
			}
			a.orch.Wait()
			return nil
		},
	}
}

func searchCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Ask a question answered from your insight library",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			query := joinArgs(args)
			ans, err := a.synth.Answer(cmd.Context(), query)
			if errors.Is(err, domain.ErrNoResults) {
				fmt.Println("No insights captured yet; record one first.")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Println(ans.Text)
			fmt.Println("\nSources:")
			for _, id := range ans.CitedInsightIDs {
				fmt.Printf("  - %s\n", id)
			}
			return nil
		},
	}
}

func draftCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "draft <insight-id> <outline|draft|takeaways>",
		Short: "Generate a draft from a stored insight and append it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			text, err := a.orch.RequestAction(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		},
	}
}

func listCmd(cfgPath *string) *cobra.Command {
	var n int
	c := &cobra.Command{
		Use:   "list",
		Short: "List recent insights",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			insights, err := a.store.ListRecent(n)
			if err != nil {
				return err
			}
			if len(insights) == 0 {
				fmt.Println("No insights captured yet.")
				return nil
			}
			for _, ins := range insights {
				tags := ""
				for _, t := range ins.Tags {
					tags += " #" + t
				}
				fmt.Printf("%s  %s  %s%s\n", ins.ID, ins.CreatedAt.Format("2006-01-02 15:04"), ins.Title, tags)
			}
			return nil
		},
	}
	c.Flags().IntVarP(&n, "count", "n", 10, "number of insights to list")
	return c
}

func rebuildCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the insight index and vector index from records",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			if err := a.store.RebuildIndex(); err != nil {
				return err
			}
			insights, err := a.store.List()
			if err != nil {
				return err
			}
			if err := a.index.Rebuild(cmd.Context(), insights, a.embedder); err != nil {
				return err
			}
			fmt.Printf("Rebuilt indexes over %d insights.\n", len(insights))
			return nil
		},
	}
}

func tuiCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Interactive search over your insight library",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			m := tui.New(a.synth, a.store)
			_, err = tea.NewProgram(m).Run()
			return err
		},
	}
}

func joinArgs(args []string) string {
	out := args[0]
	for _, a := range args[1:] {
		out += " " + a
	}
	return out
}
