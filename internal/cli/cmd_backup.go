package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/SudharsunRavi/etracker-drive/internal/app"
	"github.com/SudharsunRavi/etracker-drive/internal/config"
)

func newBackupCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot backup and restore",
		Example: "  etracker backup create --output /tmp/expense_backup.db\n" +
			"  etracker backup create --upload\n" +
			"  etracker backup restore --input /tmp/expense_backup.db",
	}
	cmd.AddCommand(
		newBackupCreateCommand(deps),
		newBackupListCommand(deps),
		newBackupRestoreCommand(deps),
	)
	return cmd
}

func newBackupCreateCommand(deps commandDeps) *cobra.Command {
	var (
		output     string
		upload     bool
		passphrase string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Export a snapshot of the store",
		Example: "  etracker backup create --output /tmp/expense_backup.db\n" +
			"  etracker backup create --upload --passphrase \"long secret\"",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("backup create does not accept positional arguments")
			}
			if output == "" && !upload {
				return usageErrorf("backup create requires --output or --upload")
			}
			return withService(cmd.Context(), deps, func(ctx context.Context, service *app.Service, cfg config.Config) error {
				data, err := service.ExportSnapshot(ctx, app.ExportOptions{
					Passphrase: passphraseBytes(passphrase),
				})
				if err != nil {
					return err
				}

				if output != "" {
					if err := os.WriteFile(output, data, 0o600); err != nil {
						return fmt.Errorf("write snapshot: %w", err)
					}
					if _, err := fmt.Fprintf(deps.out, "wrote snapshot to %s (%d bytes)\n", output, len(data)); err != nil {
						return err
					}
				}

				if upload {
					token, err := requestToken(ctx)
					if err != nil {
						return err
					}
					name := app.SnapshotName(cfg.Backup.NamePrefix, time.Now())
					id, err := newDriveClient(cfg).Upload(ctx, name, data, token)
					if err != nil {
						return err
					}
					if _, err := fmt.Fprintf(deps.out, "uploaded %s (remote id %s)\n", name, id); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "Write the snapshot to a local file")
	cmd.Flags().BoolVar(&upload, "upload", false, "Upload the snapshot to the configured remote")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "Encrypt the snapshot with this passphrase")
	return cmd
}

func newBackupListCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List remote snapshots",
		Example: "  etracker backup list",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("backup list does not accept positional arguments")
			}
			cfg, err := loadDepsConfig(deps)
			if err != nil {
				return mapCommandError(fmt.Errorf("load config: %w", err))
			}

			ctx := cmd.Context()
			token, err := requestToken(ctx)
			if err != nil {
				return mapCommandError(err)
			}
			files, err := newDriveClient(cfg).List(ctx, token, cfg.Backup.NamePrefix)
			if err != nil {
				return mapCommandError(err)
			}

			if deps.globals.JSON {
				return mapCommandError(printJSON(deps.out, files))
			}
			w := tabwriter.NewWriter(deps.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tMODIFIED\tSIZE")
			for _, f := range files {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.ID, f.Name, f.ModifiedTime, f.Size)
			}
			return mapCommandError(w.Flush())
		},
	}
	return cmd
}

func newBackupRestoreCommand(deps commandDeps) *cobra.Command {
	var (
		input      string
		remoteID   string
		passphrase string
		noVerify   bool
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Replace the store with a snapshot",
		Example: "  etracker backup restore --input /tmp/expense_backup.db\n" +
			"  etracker backup restore --remote-id 1AbC2dEf",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("backup restore does not accept positional arguments")
			}
			if (input == "") == (remoteID == "") {
				return usageErrorf("backup restore requires exactly one of --input or --remote-id")
			}

			return withService(cmd.Context(), deps, func(ctx context.Context, service *app.Service, cfg config.Config) error {
				var data []byte
				var err error
				switch {
				case input != "":
					data, err = os.ReadFile(input)
					if err != nil {
						return fmt.Errorf("read snapshot: %w", err)
					}
				default:
					token, tokenErr := requestToken(ctx)
					if tokenErr != nil {
						return tokenErr
					}
					data, err = newDriveClient(cfg).Download(ctx, remoteID, token)
					if err != nil {
						return err
					}
				}

				err = service.ImportSnapshot(ctx, data, app.ImportOptions{
					Passphrase: passphraseBytes(passphrase),
					SkipVerify: noVerify || !cfg.Backup.Verify,
				})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(deps.out, "restore complete")
				return err
			})
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "Restore from a local snapshot file")
	cmd.Flags().StringVar(&remoteID, "remote-id", "", "Restore from a remote snapshot by id")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "Passphrase for an encrypted snapshot")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip the post-restore write probe")
	return cmd
}

func passphraseBytes(passphrase string) []byte {
	if passphrase == "" {
		return nil
	}
	return []byte(passphrase)
}
