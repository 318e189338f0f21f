// Package main provides the sleuth command line tool. It validates and
// decodes Sleuth coordinate files and can run an import without the server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/segmentio/encoding/json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sleuth-ingest/config"
	"sleuth-ingest/httpx"
	"sleuth-ingest/models"
	"sleuth-ingest/neurostore"
	"sleuth-ingest/services"
	"sleuth-ingest/sleuth"
)

// errInvalidFiles is returned after the validation report was printed.
var errInvalidFiles = errors.New("one or more files are invalid")

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sleuth",
		Short:         "Validate, decode and import Sleuth coordinate files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(validateCmd(), extractCmd(), importCmd())
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check files against the Sleuth format",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := loadUploads(cmd.OutOrStdout(), args)
			return err
		},
	}
}

func extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <file>",
		Short: "Print the experiments of a file as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(args[0])
			if err != nil {
				return err
			}
			upload, res := sleuth.ParseUpload(filepath.Base(args[0]), text)
			if !res.IsValid {
				return fmt.Errorf("%s: %s", args[0], res.ErrorMessage)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(upload)
		},
	}
}

func importCmd() *cobra.Command {
	var name, description string
	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Import files into a new project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploads, err := loadUploads(cmd.ErrOrStderr(), args)
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer logger.Sync()

			provider, err := services.NewProvider(cfg, logger, httpx.New(cfg.HTTPTimeout, cfg.HTTPMaxRetries, logger))
			if err != nil {
				return err
			}
			store := neurostore.NewClient(cfg, logger.Named("neurostore"), httpx.New(cfg.HTTPTimeout, 1, logger))
			svc := services.NewImportService(cfg, provider, store, logger)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.ErrOrStderr()
			res, err := svc.Run(ctx, services.ImportRequest{
				Name:        name,
				Description: description,
				Uploads:     uploads,
				OnCreated: func(kind, id string) {
					fmt.Fprintf(out, "created %s %s\n", kind, id)
				},
			}, func(value int, text string) {
				fmt.Fprintf(out, "[%3d%%] %s\n", value, text)
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Project name")
	cmd.Flags().StringVar(&description, "description", "", "Project description")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// loadUploads parses every path and prints one status line per file.
func loadUploads(w io.Writer, paths []string) ([]*models.SleuthFileUpload, error) {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	if err := sleuth.CheckFileKeys(names); err != nil {
		return nil, err
	}

	var (
		uploads []*models.SleuthFileUpload
		failed  bool
	)
	for _, p := range paths {
		text, err := readText(p)
		if err != nil {
			return nil, err
		}
		upload, res := sleuth.ParseUpload(filepath.Base(p), text)
		if !res.IsValid {
			failed = true
			fmt.Fprintf(w, "INVALID %s: %s\n", p, res.ErrorMessage)
			continue
		}
		fmt.Fprintf(w, "OK      %s: %s, %d experiments, %d coordinates\n",
			p, upload.Space, len(upload.SleuthStubs), upload.CoordinateCount())
		uploads = append(uploads, upload)
	}
	if failed {
		return nil, errInvalidFiles
	}
	return uploads, nil
}

func readText(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return sleuth.DecodeText(raw)
}
