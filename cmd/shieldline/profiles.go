package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"shieldline/internal/geoip"
	"shieldline/internal/logger"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var listGeo bool
var addName string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored profiles",
	Long:  `Lists the stored profiles in order. The first profile is the one "start" connects with. With --geo, each server is resolved and annotated with its country and ISP.`,
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession()
		defer s.Close()

		profiles := s.svc.Profiles()
		if len(profiles) == 0 {
			fmt.Println("No profiles. Add one with 'shieldline add <link>' or 'shieldline import <url>'.")
			return
		}
		if listGeo && !geoip.Enabled() {
			logger.Log.Warn("--geo needs geoip.country_path or geoip.asn_path in the config")
			listGeo = false
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		if listGeo {
			fmt.Fprintln(w, "#\tID\tNAME\tPROTOCOL\tUP\tDOWN\tLOCATION\tISP")
		} else {
			fmt.Fprintln(w, "#\tID\tNAME\tPROTOCOL\tUP\tDOWN")
		}
		for i, p := range profiles {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s", i+1, p.ID, p.Name, p.Protocol, formatBytes(p.UploadBytes()), formatBytes(p.DownloadBytes()))
			if listGeo {
				country, isp := "XX", "Unknown"
				if addr, err := s.svc.ServerAddress(cmd.Context(), p); err == nil {
					if res, err := geoip.Lookup(addr); err == nil {
						country, isp = res.Country, res.ISP
					} else {
						logger.Log.Debugf("GeoIP lookup for %s failed: %v", addr, err)
					}
				}
				fmt.Fprintf(w, "\t%s %s\t%s", geoip.FlagEmoji(country), country, isp)
			}
			fmt.Fprintln(w)
		}
		w.Flush()
	},
}

var addCmd = &cobra.Command{
	Use:   "add <link>",
	Short: "Add a profile from a proxy link",
	Long:  `Adds one vless, ss, hy2/hysteria2, wireguard or socks link. Without --name the name is taken from the link fragment.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession()
		defer s.Close()

		p, err := s.svc.AddProfile(addName, args[0])
		if err != nil {
			logger.Log.Fatalf("Failed to add profile: %v", err)
		}
		logger.Log.Infof("Added %s (%s) as %s", p.Name, p.Protocol, p.ID)
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a profile",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession()
		defer s.Close()

		if err := s.svc.DeleteProfile(args[0]); err != nil {
			logger.Log.Fatalf("Failed to delete profile: %v", err)
		}
		logger.Log.Infof("Deleted %s", args[0])
	},
}

var importCmd = &cobra.Command{
	Use:   "import <url>...",
	Short: "Import profiles from subscription URLs",
	Long:  `Fetches each subscription (http, https or file URL), decodes base64 or plain text link lists and appends the profiles found.`,
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession()
		defer s.Close()

		var bar *progressbar.ProgressBar
		if len(args) > 1 {
			bar = progressbar.NewOptions(len(args),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(15),
				progressbar.OptionSetDescription("[cyan]Importing...[reset]"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
			)
		}

		total, failed := 0, 0
		for _, u := range args {
			added, err := s.svc.ImportSubscription(cmd.Context(), u)
			if err != nil {
				logger.Log.Errorf("Import of %s failed: %v", u, err)
				failed++
			}
			total += len(added)
			if bar != nil {
				bar.Add(1)
			}
		}
		if bar != nil {
			bar.Finish()
			fmt.Fprintln(os.Stderr)
		}

		logger.Log.Infof("Imported %d profiles from %d subscriptions", total, len(args)-failed)
		if failed == len(args) {
			os.Exit(1)
		}
	},
}

var usageCmd = &cobra.Command{
	Use:   "usage <id> <upload-bytes> <download-bytes>",
	Short: "Add traffic to a profile's usage counters",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		up, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			logger.Log.Fatalf("Invalid upload bytes %q", args[1])
		}
		down, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			logger.Log.Fatalf("Invalid download bytes %q", args[2])
		}

		s := openSession()
		defer s.Close()
		if err := s.svc.UpdateUsage(args[0], up, down); err != nil {
			logger.Log.Fatalf("Failed to update usage: %v", err)
		}
	},
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func init() {
	listCmd.Flags().BoolVar(&listGeo, "geo", false, "Resolve servers and show country and ISP")
	addCmd.Flags().StringVar(&addName, "name", "", "Profile name (default: link fragment)")

	rootCmd.AddCommand(listCmd, addCmd, deleteCmd, importCmd, usageCmd)
}

