package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"colsync/internal/app"
	"colsync/internal/collection"
	"colsync/internal/config"

	"github.com/dustin/go-humanize"
	"github.com/facette/natsort"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	verbose      bool
	showProgress bool
)

func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates an App. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "AddRoot", "CompleteScan").
func newApp(operation string) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	opts := app.Options{Verbose: verbose}
	if showProgress {
		opts.Progress = newProgressPrinter(os.Stderr)
	}
	a, err := app.NewApp(cfg, operation, opts)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// withApp runs fn against a fresh App, records a failure on the operation
// and closes the App.
func withApp(operation string, fn func(a *app.App) error) error {
	a, err := newApp(operation)
	if err != nil {
		return err
	}
	err = a.Fail(fn(a))
	if cerr := a.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// signalContext is cancelled on SIGINT or SIGTERM so scans stop at the next
// checkpoint.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func printScanResult(res *collection.ScanResult) {
	if res == nil {
		return
	}
	fmt.Printf("Scanned %s album(s), %s new item(s)\n",
		humanize.Comma(int64(len(res.ScannedAlbums))),
		humanize.Comma(int64(len(res.NewItemIDs))))
	if n := len(res.DeferredAlbumPaths); n > 0 {
		fmt.Printf("Deferred %d album(s); run 'colsync scan finish' to scan their files\n", n)
	}
}

var rootCmd = &cobra.Command{
	Use:          "colsync",
	Short:        "Keep a media catalog in sync with photo and video folders",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults.BaseDir)
		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Host ID:   %s\n", cfg.HostID)
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Database:  %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Fast Scan: %t\n", cfg.Scan.FastScan)
		fmt.Printf("Deferred:  %t (%s queue)\n", cfg.Scan.DeferredFileScanning, cfg.Deferred.Type)
		fmt.Printf("Snapshots: %t (%s vault %q)\n", cfg.Snapshot.Enabled, cfg.Snapshot.Vault.Type, cfg.Snapshot.Vault.Name)
		fmt.Printf("Ignore:    %s\n", defaults.IgnoreFile)
		return nil
	},
}

// root command
var albumRootCmd = &cobra.Command{
	Use:   "root",
	Short: "Manage album roots",
}

var rootAddCmd = &cobra.Command{
	Use:   "add PATH",
	Short: "Register a directory as album root",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label, _ := cmd.Flags().GetString("label")
		return withApp("AddRoot", func(a *app.App) error {
			root, err := a.AddRoot(args[0], label)
			if err != nil {
				return fmt.Errorf("adding album root: %w", err)
			}
			fmt.Printf("Added album root %q at %s (case %s)\n", root.Label, root.Path, root.CaseSensitivity)
			return nil
		})
	},
}

var rootListCmd = &cobra.Command{
	Use:   "list",
	Short: "List album roots",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("ListRoots", func(a *app.App) error {
			roots, err := a.ListRoots()
			if err != nil {
				return err
			}
			if len(roots) == 0 {
				fmt.Println("No album roots.")
				return nil
			}
			for _, r := range roots {
				fmt.Printf("#%d  %-15s  %-11s  %s\n", r.ID, r.Label, r.CaseSensitivity, r.Path)
			}
			return nil
		})
	},
}

var rootRemoveCmd = &cobra.Command{
	Use:   "remove LABEL|PATH",
	Short: "Unregister an album root",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("RemoveRoot", func(a *app.App) error {
			if err := a.RemoveRoot(args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed album root %s\n", args[0])
			return nil
		})
	},
}

// scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Synchronize the catalog with the album roots",
}

var scanCompleteCmd = &cobra.Command{
	Use:   "complete",
	Short: "Scan all album roots",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()
		return withApp("CompleteScan", func(a *app.App) error {
			res, err := a.CompleteScan(ctx)
			if err != nil {
				return fmt.Errorf("complete scan: %w", err)
			}
			printScanResult(res)
			return nil
		})
	},
}

var scanPartialCmd = &cobra.Command{
	Use:   "partial PATH",
	Short: "Scan one album and its sub-albums",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()
		return withApp("PartialScan", func(a *app.App) error {
			res, err := a.PartialScan(ctx, args[0])
			if err != nil {
				return fmt.Errorf("partial scan: %w", err)
			}
			printScanResult(res)
			return nil
		})
	},
}

var scanFileCmd = &cobra.Command{
	Use:   "file PATH",
	Short: "Scan a single file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		return withApp("ScanFile", func(a *app.App) error {
			id, err := a.ScanFile(args[0], mode)
			if err != nil {
				return fmt.Errorf("scanning file: %w", err)
			}
			if id < 0 {
				return fmt.Errorf("%s could not be scanned", args[0])
			}
			fmt.Printf("Item #%d\n", id)
			return nil
		})
	},
}

var scanFinishCmd = &cobra.Command{
	Use:   "finish",
	Short: "Scan the files of deferred albums",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()
		return withApp("FinishScan", func(a *app.App) error {
			res, err := a.FinishScan(ctx)
			if err != nil {
				return fmt.Errorf("finishing scan: %w", err)
			}
			printScanResult(res)
			return nil
		})
	},
}

var scanItemCmd = &cobra.Command{
	Use:   "item ID",
	Short: "Scan the file of a catalogued item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid item id %q", args[0])
		}
		mode, _ := cmd.Flags().GetString("mode")
		return withApp("ScanItem", func(a *app.App) error {
			if err := a.ScanItem(id, mode); err != nil {
				return fmt.Errorf("scanning item: %w", err)
			}
			fmt.Printf("Scanned item #%d\n", id)
			return nil
		})
	},
}

// mv / cp commands
var mvCmd = &cobra.Command{
	Use:   "mv SRC DST",
	Short: "Move a file or album, keeping its catalog identity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("Move", func(a *app.App) error {
			if _, err := a.Move(args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("Moved %s to %s\n", args[0], args[1])
			return nil
		})
	},
}

var cpCmd = &cobra.Command{
	Use:   "cp SRC DST",
	Short: "Copy a file or album with its catalog attributes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("Copy", func(a *app.App) error {
			if _, err := a.Copy(args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("Copied %s to %s\n", args[0], args[1])
			return nil
		})
	},
}

var touchedCmd = &cobra.Command{
	Use:   "touched PATH",
	Short: "Announce a file changed by another program",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rescan, _ := cmd.Flags().GetBool("rescan")
		return withApp("Touched", func(a *app.App) error {
			id, err := a.Touched(args[0], rescan)
			if err != nil {
				return err
			}
			fmt.Printf("Updated item #%d\n", id)
			return nil
		})
	},
}

// albums command
var albumsCmd = &cobra.Command{
	Use:   "albums",
	Short: "List albums with item counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("Albums", func(a *app.App) error {
			entries, err := a.Albums()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No albums.")
				return nil
			}
			sort.SliceStable(entries, func(i, j int) bool {
				if entries[i].RootLabel != entries[j].RootLabel {
					return natsort.Compare(entries[i].RootLabel, entries[j].RootLabel)
				}
				return natsort.Compare(entries[i].RelativePath, entries[j].RelativePath)
			})
			for _, e := range entries {
				fmt.Printf("%-15s  %8s  %s\n", e.RootLabel, humanize.Comma(int64(e.Items)), e.RelativePath)
			}
			return nil
		})
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show catalog status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("Status", func(a *app.App) error {
			st, err := a.Status()
			if err != nil {
				return err
			}
			fmt.Printf("Host ID:       %s\n", st.HostID)
			fmt.Printf("Initial scan:  %t\n", st.InitialScanDone)
			fmt.Printf("Album roots:   %d\n", len(st.Roots))
			fmt.Printf("Albums:        %s\n", humanize.Comma(int64(st.Albums)))
			for _, s := range []collection.ItemStatus{collection.StatusVisible, collection.StatusHidden, collection.StatusTrashed, collection.StatusObsolete} {
				fmt.Printf("  %-11s  %s\n", s.String()+":", humanize.Comma(int64(st.Items[s])))
			}
			if st.Deferred > 0 {
				fmt.Printf("Deferred:      %d album(s) awaiting 'colsync scan finish'\n", st.Deferred)
			}
			if op := st.LastOperation; op != nil {
				fmt.Printf("Last command:  %s %s (%s, %s)\n", op.Operation, op.Parameters, op.Status, humanize.Time(op.StartedAt))
			}
			fmt.Printf("Snapshot keys: %t\n", st.KeysConfigured)
			return nil
		})
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View scan operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withApp("History", func(a *app.App) error {
			ops, err := a.History(limit)
			if err != nil {
				return err
			}
			if len(ops) == 0 {
				fmt.Println("No operations recorded.")
				return nil
			}
			for _, op := range ops {
				duration := ""
				if op.FinishedAt != nil {
					duration = op.FinishedAt.Sub(op.StartedAt).Truncate(time.Millisecond).String()
				}
				fmt.Printf("#%d  %-15s  %s  %-8s  %-10s  %s\n",
					op.ID,
					op.Operation,
					op.StartedAt.Format("2006-01-02 15:04:05"),
					op.Status,
					duration,
					op.Parameters,
				)
			}
			return nil
		})
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete obsolete items and stale albums from the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("Purge", func(a *app.App) error {
			n, err := a.Purge()
			if err != nil {
				return err
			}
			fmt.Printf("Purged %s item(s)\n", humanize.Comma(int64(n)))
			return nil
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rescan albums as files change until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()
		return withApp("Watch", func(a *app.App) error {
			fmt.Println("Watching album roots; press Ctrl-C to stop.")
			return a.Watch(ctx)
		})
	},
}

// thumbs command
var thumbsCmd = &cobra.Command{
	Use:   "thumbs",
	Short: "Manage thumbnails",
}

var thumbsBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Render missing thumbnails",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()
		return withApp("BuildThumbnails", func(a *app.App) error {
			res, err := a.BuildThumbnails(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Generated %s, existing %s, failed %d\n",
				humanize.Comma(int64(res.Generated)), humanize.Comma(int64(res.Existing)), res.Failed)
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// root subcommands
	albumRootCmd.AddCommand(rootAddCmd)
	rootAddCmd.Flags().StringP("label", "l", "", "Label for the album root (default: directory name)")
	albumRootCmd.AddCommand(rootListCmd)
	albumRootCmd.AddCommand(rootRemoveCmd)

	// scan subcommands
	scanCmd.PersistentFlags().BoolVarP(&showProgress, "progress", "p", false, "Print scan progress to stderr")
	scanCmd.AddCommand(scanCompleteCmd)
	scanCmd.AddCommand(scanPartialCmd)
	scanCmd.AddCommand(scanFileCmd)
	scanFileCmd.Flags().StringP("mode", "m", "normal", "Scan mode: normal, modified, rescan or clean")
	scanCmd.AddCommand(scanFinishCmd)
	scanCmd.AddCommand(scanItemCmd)
	scanItemCmd.Flags().StringP("mode", "m", "normal", "Scan mode: normal, modified, rescan or clean")

	thumbsCmd.AddCommand(thumbsBuildCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(albumRootCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(cpCmd)
	rootCmd.AddCommand(touchedCmd)
	touchedCmd.Flags().Bool("rescan", false, "Read all metadata again instead of a modified-file update")
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(albumsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(thumbsCmd)
	rootCmd.AddCommand(snapshotCmd)
}
