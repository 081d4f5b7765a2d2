package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"shieldline/internal/logger"
	"shieldline/internal/publishers"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var syncUser string
var syncPassword string
var exportTo string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronise profiles with an account server",
	Long:  `Uses the server_url setting. Log in once; push uploads the local profiles and pull replaces them with the server copy.`,
}

var syncLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the token",
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession()
		defer s.Close()

		user, pass := credentials()
		if err := s.svc.Login(cmd.Context(), user, pass); err != nil {
			logger.Log.Fatalf("%v", err)
		}
		logger.Log.Infof("Logged in as %s", user)
	},
}

var syncRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession()
		defer s.Close()

		user, pass := credentials()
		if err := s.svc.Register(cmd.Context(), user, pass); err != nil {
			logger.Log.Fatalf("%v", err)
		}
		if s.svc.Settings().AuthToken != "" {
			logger.Log.Infof("Registered and logged in as %s", user)
		} else {
			logger.Log.Infof("Registered %s, log in with 'shieldline sync login'", user)
		}
	},
}

var syncPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload the local profiles",
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession()
		defer s.Close()

		if err := s.svc.Push(cmd.Context()); err != nil {
			logger.Log.Fatalf("%v", err)
		}
		logger.Log.Infof("Pushed %d profiles", len(s.svc.Profiles()))
	},
}

var syncPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Replace the local profiles with the server copy",
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession()
		defer s.Close()

		n, err := s.svc.Pull(cmd.Context())
		if err != nil {
			logger.Log.Fatalf("%v", err)
		}
		logger.Log.Infof("Pulled %d profiles", n)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Publish the profiles as a subscription",
	Long:  `Encodes the stored links as a subscription body (base64 unless export.base64 is false) and hands it to a publisher: stdout or github.`,
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession()
		defer s.Close()

		if err := s.svc.Export(cmd.Context(), exportTo); err != nil {
			logger.Log.Fatalf("Export failed: %v", err)
		}
		if exportTo != "stdout" {
			logger.Log.Infof("Exported %d profiles to %s", len(s.svc.Profiles()), exportTo)
		}
	},
}

// credentials falls back to prompting on stdin for anything not given as
// a flag.
func credentials() (string, string) {
	user, pass := syncUser, syncPassword
	in := bufio.NewReader(os.Stdin)
	if user == "" {
		fmt.Fprint(os.Stderr, "Username: ")
		line, _ := in.ReadString('\n')
		user = strings.TrimSpace(line)
	}
	if pass == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
			raw, _ := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			pass = string(raw)
		} else {
			line, _ := in.ReadString('\n')
			pass = strings.TrimRight(line, "\r\n")
		}
	}
	if user == "" || pass == "" {
		logger.Log.Fatal("Username and password are required")
	}
	return user, pass
}

func init() {
	for _, c := range []*cobra.Command{syncLoginCmd, syncRegisterCmd} {
		c.Flags().StringVarP(&syncUser, "user", "u", "", "Account name")
		c.Flags().StringVarP(&syncPassword, "password", "p", "", "Account password (prompted when empty)")
	}
	exportCmd.Flags().StringVar(&exportTo, "to", "stdout", fmt.Sprintf("Publisher %v", publishers.Names()))

	syncCmd.AddCommand(syncLoginCmd, syncRegisterCmd, syncPushCmd, syncPullCmd)
	rootCmd.AddCommand(syncCmd, exportCmd)
}
