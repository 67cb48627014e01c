package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hpungsan/cipherbox/internal/catalog"
	"github.com/hpungsan/cipherbox/internal/config"
	"github.com/hpungsan/cipherbox/internal/db"
	"github.com/hpungsan/cipherbox/internal/logging"
	"github.com/hpungsan/cipherbox/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"encode": true, "decode": true, "detect": true,
	"modules": true, "module": true, "dict": true,
	"serve": true, "help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
        _       _               _
   ___ (_)_ __ | |__   ___ _ __| |__   _____  __
  / __|| | '_ \| '_ \ / _ \ '__| '_ \ / _ \ \/ /
 | (__ | | |_) | | | |  __/ |  | |_) | (_) >  <
  \___||_| .__/|_| |_|\___|_|  |_.__/ \___/_/\_\
         |_|

  Data-driven cipher decoder and encoder

  Usage: cipherbox <command> [options]
         cipherbox --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil, nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}
	baseDir := filepath.Join(homeDir, config.DirName)

	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("unknown tools in disabled_tools", zap.Strings("tools", unknown))
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		logger.Warn("unknown types in disabled_types", zap.Strings("types", unknown))
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(database, cfg, logger)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'cipherbox --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	cat, err := catalog.Load(context.Background(), cfg, database, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load modules: %v\n", err)
		os.Exit(1)
	}
	if err := mcp.Run(cat.Engine(cfg), cfg, Version, logger); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
