package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"shieldline/internal/logger"
	"shieldline/internal/supervisor"

	"github.com/spf13/cobra"
)

var startDetach bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Connect with the first profile",
	Long:  `Writes the engine config for the first profile, launches sing-box with elevated privileges and streams its log until interrupted. With --detach the engine keeps running after the command returns; stop it with 'shieldline stop'.`,
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession()
		defer s.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p, err := s.svc.StartEngine(ctx)
		if errors.Is(err, supervisor.ErrAlreadyRunning) {
			logger.Log.Fatal("Engine is already running. Use 'shieldline stop' first.")
		}
		if err != nil {
			logger.Log.Fatalf("Failed to start: %v", err)
		}
		fmt.Printf("🛡️  Connected with %s (%s)\n", p.Name, p.Protocol)

		if startDetach {
			fmt.Printf("Log: %s\n", s.svc.LogPath())
			return
		}

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case batch := <-s.svc.Events():
				for _, line := range batch.Lines {
					fmt.Println(line)
				}
			case <-ticker.C:
				if !s.svc.Running() {
					logger.Log.Warn("Engine exited")
					return
				}
			case <-ctx.Done():
				fmt.Println()
				stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				err := s.svc.StopEngine(stopCtx)
				cancel()
				if err != nil && !errors.Is(err, supervisor.ErrNotRunning) {
					logger.Log.Fatalf("Failed to stop: %v", err)
				}
				fmt.Println("Disconnected")
				return
			}
		}
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running engine",
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession()
		defer s.Close()

		if err := s.svc.StopEngine(cmd.Context()); err != nil {
			if errors.Is(err, supervisor.ErrNotRunning) {
				logger.Log.Fatal("Engine is not running")
			}
			logger.Log.Fatalf("Failed to stop: %v", err)
		}
		fmt.Println("Disconnected")
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connection state and recent sessions",
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession()
		defer s.Close()

		profiles := s.svc.Profiles()
		settings := s.svc.Settings()
		sessions, err := s.svc.Sessions(5)
		if err != nil {
			logger.Log.Warnf("Failed to read sessions: %v", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

		fmt.Println("\n🛡️  \033[1mSHIELDLINE STATUS\033[0m")
		fmt.Println("────────────────────────────────────────")

		fmt.Fprintln(w, "\033[1;36m[ ENGINE ]\033[0m\t")
		state := "disconnected"
		if s.svc.Running() {
			state = "\033[32mconnected\033[0m"
		}
		fmt.Fprintf(w, "  State:\t%s\n", state)
		if s.svc.Running() && len(sessions) > 0 && sessions[0].StoppedAt == nil {
			fmt.Fprintf(w, "  Profile:\t%s (%s)\n", sessions[0].ProfileName, sessions[0].Protocol)
			fmt.Fprintf(w, "  Since:\t%s\n", sessions[0].StartedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintf(w, "  Binary:\t%s\n", s.cfg.Engine.Binary)
		fmt.Fprintf(w, "  Log:\t%s\n", s.svc.LogPath())
		fmt.Fprintln(w, "\t")

		fmt.Fprintln(w, "\033[1;36m[ PROFILES ]\033[0m\t")
		fmt.Fprintf(w, "  Stored:\t%d\n", len(profiles))
		if len(profiles) > 0 {
			fmt.Fprintf(w, "  Next start uses:\t%s (%s)\n", profiles[0].Name, profiles[0].Protocol)
		}
		if settings.AuthToken != "" {
			fmt.Fprintf(w, "  Sync:\t%s (pending upload: %v)\n", settings.ServerURL, settings.PendingUpload)
		}
		fmt.Fprintln(w, "\t")

		fmt.Fprintln(w, "\033[1;36m[ RECENT SESSIONS ]\033[0m\t")
		if len(sessions) == 0 {
			fmt.Fprintln(w, "  (none)")
		}
		for _, rec := range sessions {
			end := "running"
			if rec.StoppedAt != nil {
				end = fmt.Sprintf("%s, %s", rec.StoppedAt.Sub(rec.StartedAt).Round(time.Second), rec.ExitReason)
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\n", rec.StartedAt.Format("2006-01-02 15:04"), rec.ProfileName, end)
		}

		w.Flush()
		fmt.Println("")
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Engine log helpers",
}

var logsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the engine log directory",
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession()
		defer s.Close()
		fmt.Println(s.svc.LogDir())
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Engine config helpers",
}

var configRenderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the engine config for the first profile without launching",
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession()
		defer s.Close()

		doc, p, err := s.svc.EngineConfig(cmd.Context())
		if err != nil {
			logger.Log.Fatalf("Failed to build config: %v", err)
		}
		logger.Log.Debugf("Rendering config for %s", p.Name)
		raw, err := doc.Marshal()
		if err != nil {
			logger.Log.Fatalf("%v", err)
		}
		os.Stdout.Write(raw)
	},
}

func init() {
	startCmd.Flags().BoolVarP(&startDetach, "detach", "d", false, "Return after launching instead of streaming the log")

	logsCmd.AddCommand(logsPathCmd)
	configCmd.AddCommand(configRenderCmd)
	rootCmd.AddCommand(startCmd, stopCmd, statusCmd, logsCmd, configCmd)
}
