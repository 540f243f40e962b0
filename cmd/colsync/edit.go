package main

import (
	"fmt"
	"os"
	"os/exec"

	"colsync/internal/app"

	"github.com/spf13/cobra"
)

var editCmd = &cobra.Command{
	Use:   "edit PATH -- COMMAND [ARG...]",
	Short: "Run a metadata editor on a file and keep its thumbnail",
	Long: `Runs COMMAND with its arguments, then rescans PATH. COMMAND should only
change embedded metadata (for example exiftool writing tags), so the
thumbnail of the file is kept under its new content hash.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.ArgsLenAtDash() != 1 {
			return fmt.Errorf("separate PATH and COMMAND with --")
		}
		ctx, cancel := signalContext(cmd)
		defer cancel()
		return withApp("EditMetadata", func(a *app.App) error {
			id, err := a.EditMetadata(args[0], func() error {
				c := exec.CommandContext(ctx, args[1], args[2:]...)
				c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
				return c.Run()
			})
			if err != nil {
				return err
			}
			fmt.Printf("Updated item #%d\n", id)
			return nil
		})
	},
}
