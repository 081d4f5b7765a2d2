package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"shieldline/internal/app"
	"shieldline/internal/logger"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change network and obfuscation settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings",
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession()
		defer s.Close()

		st := s.svc.Settings()
		token := "(none)"
		if st.AuthToken != "" {
			token = "(set)"
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "mtu\t%d\n", st.MTU)
		fmt.Fprintf(w, "dns\t%s\n", st.DNS)
		fmt.Fprintf(w, "fragment\t%v\n", st.Fragment)
		fmt.Fprintf(w, "fragment_size\t%s\n", st.FragmentSize)
		fmt.Fprintf(w, "fragment_sleep\t%s\n", st.FragmentSleep)
		fmt.Fprintf(w, "mixed_case_sni\t%v\n", st.MixedCaseSNI)
		fmt.Fprintf(w, "padding\t%v\n", st.Padding)
		fmt.Fprintf(w, "server_url\t%s\n", st.ServerURL)
		fmt.Fprintf(w, "auth_token\t%s\n", token)
		fmt.Fprintf(w, "pending_upload\t%v\n", st.PendingUpload)
		w.Flush()
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set key=value...",
	Short: "Change one or more settings",
	Long:  "Known keys: " + strings.Join(app.SettingKeys, ", ") + ". Changes apply on the next start.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession()
		defer s.Close()

		st := s.svc.Settings()
		for _, arg := range args {
			key, value, ok := strings.Cut(arg, "=")
			if !ok {
				logger.Log.Fatalf("Expected key=value, got %q", arg)
			}
			if err := app.ApplySetting(&st, key, value); err != nil {
				logger.Log.Fatalf("Invalid setting: %v", err)
			}
		}
		if err := s.svc.SaveSettings(st); err != nil {
			logger.Log.Fatalf("Failed to save settings: %v", err)
		}
		if s.svc.Running() {
			logger.Log.Info("Settings saved. Restart the engine to apply them.")
		} else {
			logger.Log.Info("Settings saved.")
		}
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
