package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/calltrace/codegraph/internal/graph"
	"github.com/calltrace/codegraph/internal/storage"
)

// version is stamped at build time via -ldflags.
var version = "dev"

var flagCacheDir string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "codegraph",
	Short:         "Persistent code-intelligence cache and call-graph analytics",
	Long:          "Codegraph stores extracted symbols and references in per-workspace SQLite caches and answers dependency-graph queries over them: cycles, critical paths, and graph metrics.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagCacheDir, "cache-dir", "",
		"cache directory (default: $CODEGRAPH_CACHE_DIR or ~/.codegraph)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(cyclesCmd)
	rootCmd.AddCommand(metricsCmd)
}

// cacheDir resolves the cache directory: flag, then environment, then the
// user's home.
func cacheDir() (string, error) {
	if flagCacheDir != "" {
		return flagCacheDir, nil
	}
	if dir := os.Getenv("CODEGRAPH_CACHE_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve home directory: %w", err)
	}
	return filepath.Join(home, ".codegraph"), nil
}

// openProject opens the cache for a workspace root and resolves its project
// row. The root must have been ingested already.
func openProject(ctx context.Context, rootPath string) (*storage.CacheDB, *storage.Project, error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	db, err := storage.OpenOrCreate(dir, rootPath)
	if err != nil {
		return nil, nil, err
	}
	project, err := storage.NewProjectStore(db).GetProjectByPath(ctx, rootPath)
	if err != nil {
		_ = db.Close()
		if err == storage.ErrNotFound {
			return nil, nil, fmt.Errorf("no cached data for %s: ingest it first", rootPath)
		}
		return nil, nil, err
	}
	return db, project, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and storage driver",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("codegraph %s (schema %s, %s sqlite)\n",
			version, storage.CurrentSchemaVersion, storage.BuildMode)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <root>",
	Short: "Show cached project statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db, project, err := openProject(ctx, args[0])
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	fileCount, err := storage.NewFileStore(db).GetFileCount(ctx, project.ID)
	if err != nil {
		return err
	}
	symbolCounts, err := storage.NewSymbolStore(db).GetSymbolCountsByKind(ctx)
	if err != nil {
		return err
	}
	referenceCounts, err := storage.NewReferenceStore(db).GetReferenceCountsByKind(ctx)
	if err != nil {
		return err
	}

	return printJSON(map[string]interface{}{
		"project":            project.Name,
		"root_path":          project.RootPath,
		"files":              fileCount,
		"symbols_by_kind":    symbolCounts,
		"references_by_kind": referenceCounts,
	})
}

var cyclesCmd = &cobra.Command{
	Use:   "cycles <root>",
	Short: "Detect dependency cycles in the cached call graph",
	Args:  cobra.ExactArgs(1),
	RunE:  runCycles,
}

func runCycles(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db, project, err := openProject(ctx, args[0])
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	g, err := graph.Build(ctx, storage.NewSymbolStore(db), storage.NewReferenceStore(db), graph.Options{})
	if err != nil {
		return err
	}
	analyzer := graph.NewAnalyzer(storage.NewAnalysisStore(db))
	report, err := analyzer.Cycles(ctx, g, project.ID)
	if err != nil {
		return err
	}
	return printJSON(report)
}

var metricsCmd = &cobra.Command{
	Use:   "metrics <root>",
	Short: "Compute graph metrics over the cached call graph",
	Args:  cobra.ExactArgs(1),
	RunE:  runMetrics,
}

func runMetrics(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db, project, err := openProject(ctx, args[0])
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	g, err := graph.Build(ctx, storage.NewSymbolStore(db), storage.NewReferenceStore(db), graph.Options{})
	if err != nil {
		return err
	}
	analyzer := graph.NewAnalyzer(storage.NewAnalysisStore(db))
	metrics, err := analyzer.Metrics(ctx, g, project.ID)
	if err != nil {
		return err
	}
	return printJSON(metrics)
}
