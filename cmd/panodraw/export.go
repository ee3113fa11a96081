package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/panodraw/annotator/internal/config"
	"github.com/panodraw/annotator/internal/geo"
	"github.com/panodraw/annotator/internal/logging"
	"github.com/panodraw/annotator/internal/storage"
	"github.com/panodraw/annotator/internal/storage/memory"
	"github.com/panodraw/annotator/pkg/core"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export <session-id | export-file>",
	Short: "Print a journaled session",
	Long: `Print the shapes of a journal session. The argument is either a session id
stored in the configured SQLite or Postgres journal, or a .json / .json.gz
file written by the memory journal.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadExport(args[0])
		if err != nil {
			return err
		}
		return writeExport(cmd.OutOrStdout(), e, exportFormat)
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions in the configured journal database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		loader, closeFn, err := openLoader()
		if err != nil {
			return err
		}
		defer closeFn()

		sessions, err := loader.Sessions()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, s := range sessions {
			end := "open"
			if !s.EndTime.IsZero() {
				end = s.EndTime.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(out, "%s  %s  %s  %s\n", s.ID, s.StartTime.Format("2006-01-02 15:04:05"), end, s.ViewerURL)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "output format: json, wkt or anchors")
	rootCmd.AddCommand(exportCmd, sessionsCmd)
}

func isExportFile(arg string) bool {
	return strings.HasSuffix(arg, ".json") || strings.HasSuffix(arg, ".json.gz")
}

func loadExport(arg string) (core.SessionExport, error) {
	if isExportFile(arg) {
		return memory.ReadExport(arg)
	}

	id, err := uuid.Parse(arg)
	if err != nil {
		return core.SessionExport{}, fmt.Errorf("not a session id or export file: %s", arg)
	}
	loader, closeFn, err := openLoader()
	if err != nil {
		return core.SessionExport{}, err
	}
	defer closeFn()
	return loader.LoadSession(id)
}

// openLoader opens the configured journal database for reading.
func openLoader() (storage.Loader, func(), error) {
	cfg := config.GetStorageConfig()
	if cfg.Type != "sqlite" && cfg.Type != "postgres" {
		return nil, nil, fmt.Errorf("storage type %q keeps no readable sessions; pass an export file", cfg.Type)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logging.ParseLevel(viper.GetString("logLevel"))}))
	zl := logging.NewZerolog(os.Stderr, viper.GetString("logLevel"))
	backend, err := storage.NewBackend(cfg, zl, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := backend.Init(); err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := backend.Close(); err != nil {
			logger.Warn("Failed to close journal", "error", err)
		}
	}
	loader, ok := backend.(storage.Loader)
	if !ok {
		closeFn()
		return nil, nil, fmt.Errorf("storage type %q cannot load sessions", cfg.Type)
	}
	return loader, closeFn, nil
}

func writeExport(w io.Writer, e core.SessionExport, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(e)
	case "wkt":
		for _, sh := range e.Shapes {
			if sh.Removed {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\n", sh.ID, geo.ShapeGeometry(sh.Kind, sh.Anchors).AsText())
		}
		return nil
	case "anchors":
		// one line per live shape, ready to feed back through :SHAPE:ADD:
		for _, sh := range e.Shapes {
			if sh.Removed {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", sh.ID, sh.Kind, geo.FormatAnchors(sh.Anchors))
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
