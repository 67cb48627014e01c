package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/cipherbox/internal/catalog"
	"github.com/hpungsan/cipherbox/internal/cipher"
	"github.com/hpungsan/cipherbox/internal/config"
	"github.com/hpungsan/cipherbox/internal/engine"
	"github.com/hpungsan/cipherbox/internal/errors"
	"github.com/hpungsan/cipherbox/internal/ops"
	"github.com/hpungsan/cipherbox/internal/web"
)

// defaultStdinBytes bounds stdin when no input limit is configured.
const defaultStdinBytes = 1 << 20

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.App {
	app := &cli.App{
		Name:    "cipherbox",
		Usage:   "Data-driven cipher decoder and encoder",
		Version: Version,
		Commands: []*cli.Command{
			encodeCmd(db, cfg, logger),
			decodeCmd(db, cfg, logger),
			detectCmd(db, cfg, logger),
			modulesCmd(db, cfg, logger),
			moduleCmd(db, cfg, logger),
			dictCmd(db),
			serveCmd(db, cfg, logger),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// loadCatalog builds the module catalog from every configured source.
func loadCatalog(ctx context.Context, db *sql.DB, cfg *config.Config, logger *zap.Logger) (*catalog.Catalog, error) {
	cat, err := catalog.Load(ctx, cfg, db, logger)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return cat, nil
}

func decodeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "lenient", Aliases: []string{"l"}, Usage: "Pass unmapped input through instead of rejecting the candidate"},
		&cli.BoolFlag{Name: "require-dict", Aliases: []string{"d"}, Usage: "Keep only candidates made entirely of dictionary words"},
		&cli.IntFlag{Name: "max-candidates", Usage: "Cap the number of candidates per module"},
	}
}

func decodeOptions(c *cli.Context) (engine.Options, error) {
	maxCandidates := c.Int("max-candidates")
	if maxCandidates < 0 {
		return engine.Options{}, errors.NewInvalidRequest("max-candidates must not be negative")
	}
	return engine.Options{
		RequirePerfect:    !c.Bool("lenient"),
		RequireDictionary: c.Bool("require-dict"),
		Limits:            cipher.Limits{MaxCandidates: maxCandidates},
	}, nil
}

// encodeCmd creates the encode command.
func encodeCmd(db *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:      "encode",
		Usage:     "Encode plaintext with a module (text from arguments or stdin)",
		ArgsUsage: "[text]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "module", Aliases: []string{"m"}, Required: true, Usage: "Module name"},
			&cli.BoolFlag{Name: "ignore-case", Aliases: []string{"i"}, Usage: "Fold the plaintext to the module's case"},
		},
		Action: func(c *cli.Context) error {
			text, err := inputText(c, cfg)
			if err != nil {
				return outputError(err)
			}
			cat, err := loadCatalog(c.Context, db, cfg, logger)
			if err != nil {
				return outputError(err)
			}

			result, err := cat.Engine(cfg).Encode(c.String("module"), text, c.Bool("ignore-case"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(result)
		},
	}
}

// decodeCmd creates the decode command.
func decodeCmd(db *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode ciphertext with a module, or with every module when none is given",
		ArgsUsage: "[text]",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "module", Aliases: []string{"m"}, Usage: "Module name (default: auto-detect)"},
		}, decodeFlags()...),
		Action: func(c *cli.Context) error {
			opts, err := decodeOptions(c)
			if err != nil {
				return outputError(err)
			}
			text, err := inputText(c, cfg)
			if err != nil {
				return outputError(err)
			}
			cat, err := loadCatalog(c.Context, db, cfg, logger)
			if err != nil {
				return outputError(err)
			}

			result, err := cat.Engine(cfg).Run(c.Context, engine.Request{
				Mode:    engine.ModeDecode,
				Module:  c.String("module"),
				Text:    text,
				Options: opts,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(result)
		},
	}
}

// detectCmd creates the detect command.
func detectCmd(db *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:      "detect",
		Usage:     "Decode ciphertext with every loaded module",
		ArgsUsage: "[text]",
		Flags:     decodeFlags(),
		Action: func(c *cli.Context) error {
			opts, err := decodeOptions(c)
			if err != nil {
				return outputError(err)
			}
			text, err := inputText(c, cfg)
			if err != nil {
				return outputError(err)
			}
			cat, err := loadCatalog(c.Context, db, cfg, logger)
			if err != nil {
				return outputError(err)
			}

			result, err := cat.Engine(cfg).Detect(c.Context, text, opts)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(result)
		},
	}
}

// loadedModule describes a registry module on the command line.
type loadedModule struct {
	Name             string         `json:"name"`
	Source           catalog.Source `json:"source"`
	Keys             int            `json:"keys"`
	ReverseDirection bool           `json:"reverse_direction,omitempty"`
}

// modulesCmd creates the modules command.
func modulesCmd(db *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "modules",
		Usage: "List loaded modules in auto-detect order",
		Action: func(c *cli.Context) error {
			cat, err := loadCatalog(c.Context, db, cfg, logger)
			if err != nil {
				return outputError(err)
			}

			items := make([]loadedModule, 0, cat.Registry.Len())
			for _, m := range cat.Registry.Modules() {
				items = append(items, loadedModule{
					Name:             m.Name,
					Source:           cat.Sources[m.Name],
					Keys:             m.Mapping.Len(),
					ReverseDirection: m.Settings.ReverseDirection,
				})
			}
			return outputJSON(map[string]any{
				"items":            items,
				"dictionary_words": cat.Dictionary.Len(),
			})
		},
	}
}

// moduleCmd creates the module command group.
func moduleCmd(db *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "module",
		Usage: "Show loaded modules and manage stored modules",
		Subcommands: []*cli.Command{
			moduleShowCmd(db, cfg, logger),
			moduleAddCmd(db),
			moduleListCmd(db),
			moduleDeleteCmd(db),
			moduleExportCmd(db, cfg),
			moduleImportCmd(db, cfg),
		},
	}
}

func moduleShowCmd(db *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show the definition of a loaded module",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			name := c.Args().First()
			if name == "" {
				return outputError(errors.NewInvalidRequest("module name is required"))
			}
			cat, err := loadCatalog(c.Context, db, cfg, logger)
			if err != nil {
				return outputError(err)
			}
			m, ok := cat.Registry.Get(name)
			if !ok {
				return outputError(errors.NewNotFound(name))
			}
			return outputJSON(map[string]any{
				"source": cat.Sources[name],
				"module": m,
			})
		},
	}
}

func moduleAddCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Store a module definition from a JSON file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true, Usage: "Module JSON file"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Module name (default: file name without extension)"},
			&cli.StringFlag{Name: "mode", Value: "error", Usage: "Collision mode: error|replace"},
		},
		Action: func(c *cli.Context) error {
			path := c.String("file")
			definition, err := os.ReadFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					return outputError(errors.NewFileNotFound(path))
				}
				return outputError(errors.NewInternal(err))
			}

			name := c.String("name")
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}

			output, err := ops.AddModule(db, ops.AddModuleInput{
				Name:       name,
				Definition: definition,
				Mode:       ops.StoreMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func moduleListCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored modules",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: ops.DefaultListLimit, Usage: "Maximum number of results"},
			&cli.IntFlag{Name: "offset", Usage: "Number of results to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ListModules(db, ops.ListModulesInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func moduleDeleteCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a stored module",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			output, err := ops.DeleteModule(db, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func moduleExportCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export stored modules to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output file path (default: ~/.cipherbox/exports/...)"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Export a single module"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ExportInput{Path: c.String("path")}
			if name := c.String("name"); name != "" {
				input.Name = &name
			}

			output, err := ops.Export(c.Context, db, cfg, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func moduleImportCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import stored modules from a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Input file path"},
			&cli.StringFlag{Name: "mode", Value: "error", Usage: "Import mode: error|replace"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Import(db, cfg, ops.ImportInput{
				Path: c.String("path"),
				Mode: ops.StoreMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// dictCmd creates the dict command group.
func dictCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "dict",
		Usage: "Manage extra dictionary words",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add words to the dictionary",
				ArgsUsage: "<word>...",
				Action: func(c *cli.Context) error {
					output, err := ops.AddWords(db, c.Args().Slice())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "delete",
				Usage:     "Remove added words from the dictionary",
				ArgsUsage: "<word>...",
				Action: func(c *cli.Context) error {
					output, err := ops.DeleteWords(db, c.Args().Slice())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "count",
				Usage: "Count added words",
				Action: func(c *cli.Context) error {
					output, err := ops.CountWords(db)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "list",
				Usage: "List added words",
				Action: func(c *cli.Context) error {
					words, err := ops.ListWords(db)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"words": words})
				},
			},
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(db *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind to"},
			&cli.IntFlag{Name: "port", Value: 8642, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			port := c.Int("port")
			if port < 0 || port > 65535 {
				return outputError(errors.NewInvalidRequest("port must be between 0 and 65535"))
			}
			cat, err := loadCatalog(c.Context, db, cfg, logger)
			if err != nil {
				return outputError(err)
			}

			srv := web.NewServer(cat, cfg, Version, c.String("bind"), port, logger)
			return web.Run(srv, logger)
		},
	}
}

// outputJSON writes v to stdout as indented JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if cErr, ok := err.(*errors.CipherError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", cErr.Code, cErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// inputText returns the command's text: its arguments joined by spaces, or
// stdin when there are none.
func inputText(c *cli.Context, cfg *config.Config) (string, error) {
	if c.NArg() > 0 {
		return strings.Join(c.Args().Slice(), " "), nil
	}
	if !stdinHasData() {
		return "", errors.NewInvalidRequest("text is required as arguments or piped via stdin")
	}
	return readStdin(stdinLimit(cfg))
}

func stdinLimit(cfg *config.Config) int64 {
	if cfg == nil || cfg.InputMaxChars <= 0 {
		return defaultStdinBytes
	}
	return int64(cfg.InputMaxChars) * utf8.UTFMax
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most maxBytes from stdin. Surrounding whitespace,
// including the trailing newline, is dropped.
func readStdin(maxBytes int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, maxBytes+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if int64(len(data)) > maxBytes {
		return "", errors.NewInvalidRequest(fmt.Sprintf("stdin exceeds %d bytes", maxBytes))
	}
	return strings.TrimSpace(string(data)), nil
}
