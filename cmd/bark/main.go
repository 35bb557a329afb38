// Package main provides the CLI entry point for bark, a resumable
// behavior-tree interpreter for LLM agent scripts.
//
// # Basic Usage
//
// Run a tree to completion:
//
//	bark ./trees/onboarding.json
//	bark ./trees/onboarding.json model.yaml ./trees 250000
//
// # Environment Variables
//
// When model_config_path is omitted, the model facade is built from:
//
//   - OPENAI_API_KEY, OPENAI_URL: an OpenAI-style backend named "default"
//   - OLLAMA_HOST: a local-inference backend named "default"
//   - MODEL_NAME: the remote model identifier for "default"
//   - EMBEDDING_MODEL_NAME: the remote model identifier for the embedding backend
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/barktree/bark/internal/bark/audit"
	barkconfig "github.com/barktree/bark/internal/bark/config"
	"github.com/barktree/bark/internal/bark/controller"
	"github.com/barktree/bark/internal/bark/exec"
	"github.com/barktree/bark/internal/bark/metrics"
	"github.com/barktree/bark/internal/bark/node"
	"github.com/barktree/bark/internal/bark/tree"
)

// Build information, populated by ldflags during build.
//
// Example build command:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// defaultGas is the gas budget used when the caller doesn't supply one.
const defaultGas = 100000

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bark <tree_path> [model_config_path] [tree_root] [gas]",
		Short: "Run a resumable behavior-tree agent script to completion",
		Long: `bark loads a tree descriptor, builds a model facade from a config file
or the environment, and ticks the tree's root node until it completes,
fails, or exhausts its gas budget.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Args:         cobra.RangeArgs(1, 4),
		SilenceUsage: true,
		RunE:         runTree,
	}
}

func runTree(cmd *cobra.Command, args []string) error {
	treePath := args[0]

	var modelConfigPath, treeRootArg string
	gas := defaultGas
	if len(args) > 1 {
		modelConfigPath = args[1]
	}
	if len(args) > 2 {
		treeRootArg = args[2]
	}
	if len(args) > 3 {
		g, err := strconv.Atoi(args[3])
		if err != nil {
			return fmt.Errorf("gas: %w", err)
		}
		gas = g
	}

	treeRoot := barkconfig.ResolveTreeRoot(treePath, treeRootArg)
	rootPath := filepath.Join(treeRoot, filepath.Base(treePath))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cfg *barkconfig.Config
	if modelConfigPath != "" {
		loaded, err := barkconfig.Load(modelConfigPath)
		if err != nil {
			return fmt.Errorf("load model config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = barkconfig.FromEnv()
	}

	facade, err := barkconfig.Build(ctx, cfg, treeRoot)
	if err != nil {
		return fmt.Errorf("build model facade: %w", err)
	}

	auditLogger, err := audit.NewLogger(audit.DefaultConfig())
	if err != nil {
		return fmt.Errorf("build audit logger: %w", err)
	}
	defer auditLogger.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	sink := metrics.Wrap(auditLogger, m)

	loader := tree.FileLoader{}
	root, err := loader.Load(rootPath)
	if err != nil {
		return fmt.Errorf("load tree: %w", err)
	}

	runner := &exec.Runner{
		Controller: controller.New("Represent this sentence for searching relevant passages: "),
		Facade:     facade,
		Gas:        node.NewGas(gas),
		Audit:      sink,
		Metrics:    m,
	}

	state, err := runner.Run(ctx, root)
	if err != nil {
		return fmt.Errorf("run tree: %w", err)
	}

	switch state {
	case node.Complete:
		return nil
	case node.Failed:
		os.Exit(1)
		return nil
	default:
		panic(fmt.Sprintf("bark: root node returned non-terminal state %v", state))
	}
}
