package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <media-id>...",
	Short: "Remove media items and their faces from the index",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	d, err := loadDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := cmd.Context()
	for _, id := range args {
		media, err := d.db.GetMedia(ctx, id)
		if err != nil {
			return err
		}
		if err := d.db.Remove(ctx, id); err != nil {
			return err
		}
		if media != nil {
			if err := d.minio.DeleteObject(ctx, media.ObjectKey); err != nil {
				slog.Warn("delete object", "key", media.ObjectKey, "error", err)
			}
			if err := d.db.DeleteMedia(ctx, id); err != nil {
				return err
			}
		}
		fmt.Println("removed", id)
	}
	return nil
}
