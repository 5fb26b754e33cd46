package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexintake/console/pkg/config"
	"github.com/lexintake/console/pkg/objectstore"
	"github.com/lexintake/console/pkg/objectstore/factory"
	"github.com/lexintake/console/pkg/observability/logger"
)

// newStorageCommand operates on objects through the same selector serve uses, so the
// managed-host signal decides which backend is touched.
func newStorageCommand(load loadFunc) *cobra.Command {
	storageCmd := &cobra.Command{
		Use:   "storage",
		Short: "Object storage commands",
	}

	withStorage := func(cmd *cobra.Command, fn func(ctx context.Context, svc objectstore.Service) error) error {
		cfg, log, err := load(cmd)
		if err != nil {
			return err
		}
		return runWithStorage(cmd.Context(), cfg, log, fn)
	}

	storageCmd.AddCommand(&cobra.Command{
		Use:   "ls [prefix]",
		Short: "List objects",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			return withStorage(cmd, func(ctx context.Context, svc objectstore.Service) error {
				infos, err := svc.List(ctx, prefix)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, info := range infos {
					fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", info.Key, info.Size, info.ContentType, info.LastModified.UTC().Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	})

	var contentType string
	putCmd := &cobra.Command{
		Use:   "put <key> <file>",
		Short: "Upload a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[1], err)
			}
			ct := contentType
			if ct == "" {
				ct = http.DetectContentType(data)
			}
			return withStorage(cmd, func(ctx context.Context, svc objectstore.Service) error {
				info, err := svc.Store(ctx, args[0], data, ct)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored %s (%d bytes, %s)\n", info.Key, info.Size, info.ContentType)
				return nil
			})
		},
	}
	putCmd.Flags().StringVar(&contentType, "content-type", "", "content type (sniffed when empty)")
	storageCmd.AddCommand(putCmd)

	var output string
	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Download an object to stdout or a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorage(cmd, func(ctx context.Context, svc objectstore.Service) error {
				obj, err := svc.Retrieve(ctx, args[0])
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(obj.Data)
					return err
				}
				return os.WriteFile(output, obj.Data, 0o644)
			})
		},
	}
	getCmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	storageCmd.AddCommand(getCmd)

	storageCmd.AddCommand(&cobra.Command{
		Use:   "rm <key>",
		Short: "Delete an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorage(cmd, func(ctx context.Context, svc objectstore.Service) error {
				if err := svc.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	})

	return storageCmd
}

func runWithStorage(ctx context.Context, cfg *config.Config, log logger.Logger, fn func(ctx context.Context, svc objectstore.Service) error) error {
	detector := factory.NewDetector(cfg.ObjectStorage.Managed, log, nil)
	selector, err := factory.NewSelector(cfg.ObjectStorage, detector, log, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := selector.Close(); err != nil {
			log.Warn("close storage backend failed", "error", err)
		}
	}()

	svc, err := selector.Get(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, svc)
}
