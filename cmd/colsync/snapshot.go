package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"colsync/internal/app"
	"colsync/internal/encryption"
	"colsync/internal/snapshot"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// readPassphrase prompts on stderr and reads without echo from a terminal.
// Piped input is read as one line.
func readPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage encrypted catalog snapshots",
}

var snapshotKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the snapshot key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("SetupKeys", func(a *app.App) error {
			pass, err := readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
			if term.IsTerminal(int(os.Stdin.Fd())) {
				confirm, err := readPassphrase("Repeat passphrase: ")
				if err != nil {
					return err
				}
				if confirm != pass {
					return fmt.Errorf("passphrases do not match")
				}
			}
			if err := a.SetupKeys(pass); err != nil {
				return fmt.Errorf("generating keys: %w", err)
			}
			if pub, err := a.PublicKey(); err == nil {
				fmt.Printf("Public key: %s\n", pub)
			}
			fmt.Println("Keys generated. Keep the passphrase safe; snapshots cannot be restored without it.")
			return nil
		})
	},
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Store an encrypted copy of the catalog in the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("CreateSnapshot", func(a *app.App) error {
			m, err := a.CreateSnapshot()
			if err != nil {
				return fmt.Errorf("creating snapshot: %w", err)
			}
			fmt.Printf("Snapshot %s (%s)\n", m.ID, humanize.Bytes(uint64(m.Size)))
			return nil
		})
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots of this host",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("ListSnapshots", func(a *app.App) error {
			manifests, err := a.ListSnapshots()
			if err != nil {
				return err
			}
			if len(manifests) == 0 {
				fmt.Println("No snapshots.")
				return nil
			}
			for _, m := range manifests {
				fmt.Printf("%s  %s  %8s  op #%d\n",
					m.ID,
					m.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					humanize.Bytes(uint64(m.Size)),
					m.OperationID,
				)
			}
			return nil
		})
	},
}

var snapshotPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		keep, _ := cmd.Flags().GetInt("keep")
		return withApp("PruneSnapshots", func(a *app.App) error {
			n, err := a.PruneSnapshots(keep)
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d snapshot(s)\n", n)
			return nil
		})
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore DEST",
	Short: "Decrypt a snapshot to a new catalog file",
	Long: `Decrypt a snapshot to DEST. The live catalog is never replaced; stop colsync
and move DEST into place yourself. Without --identity the host key is unlocked
with its passphrase.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		identity, _ := cmd.Flags().GetString("identity")
		return withApp("RestoreSnapshot", func(a *app.App) error {
			var dctx snapshot.DecryptionContext
			if identity != "" {
				ic, err := encryption.ParseIdentityFile(identity)
				if err != nil {
					return err
				}
				dctx = ic
			} else {
				pass, err := readPassphrase("Passphrase: ")
				if err != nil {
					return err
				}
				if dctx, err = a.Unlock(pass); err != nil {
					return err
				}
			}

			m, err := a.RestoreSnapshot(id, args[0], dctx)
			if err != nil {
				return fmt.Errorf("restoring snapshot: %w", err)
			}
			fmt.Printf("Restored snapshot %s from %s to %s\n", m.ID, humanize.Time(m.CreatedAt), args[0])
			return nil
		})
	},
}

func init() {
	snapshotCmd.AddCommand(snapshotKeygenCmd)
	snapshotCmd.AddCommand(snapshotCreateCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotPruneCmd)
	snapshotPruneCmd.Flags().Int("keep", 5, "Number of newest snapshots to keep")
	snapshotCmd.AddCommand(snapshotRestoreCmd)
	snapshotRestoreCmd.Flags().String("id", "", "Snapshot id (default: latest)")
	snapshotRestoreCmd.Flags().String("identity", "", "Plaintext age identity file, e.g. an offline recovery key")
}
