// Package commands builds the parajoin command line
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nainya/parajoin/internal/config"
	"github.com/nainya/parajoin/internal/editor"
	"github.com/nainya/parajoin/internal/lease"
	"github.com/nainya/parajoin/internal/logger"
	"github.com/nainya/parajoin/pkg/repo"
)

// rootOptions are the flags shared by every command
type rootOptions struct {
	configPath string
	json       bool
	out        io.Writer
}

// New creates the parajoin root command
func New() *cobra.Command {
	ro := &rootOptions{out: color.Output}

	cmd := &cobra.Command{
		Use:   "parajoin",
		Short: "Keep joined paragraph text of digitized books consistent with their join flags.",
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if w := cmd.OutOrStdout(); w != os.Stdout {
				ro.out = w
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&ro.configPath, "config", "", "Config file (default .parajoin.yaml in the working or home directory).")
	flags.String("separator", "", "Text placed between source texts of a run.")
	flags.String("reset-policy", "", "Translation status handling on joined-text change: on-change or preserve-reviewed.")
	flags.String("log-level", "", "Log level: debug, info, warn or error.")
	flags.String("redis-url", "", "Redis URL for cross-process edit leases.")
	flags.BoolVar(&ro.json, "json", false, "Output as JSON.")

	AddCommands(cmd, ro)
	return cmd
}

// AddCommands registers every subcommand on topLevel
func AddCommands(topLevel *cobra.Command, ro *rootOptions) {
	addRebuild(topLevel, ro)
	addToggle(topLevel, ro)
	addAlign(topLevel, ro)
	addStats(topLevel, ro)
	addList(topLevel, ro)
	addServe(topLevel, ro)
}

func (ro *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(ro.configPath, cmd.Flags())
}

func newLogger(cfg *config.Config, out io.Writer) *logger.Logger {
	return logger.NewLogger(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: out,
	})
}

func newLocker(cfg *config.Config) (lease.Locker, func(), error) {
	if cfg.RedisURL == "" {
		return lease.NewLocal(), func() {}, nil
	}
	r, err := lease.NewRedis(cfg.RedisURL, cfg.LeaseTTL)
	if err != nil {
		return nil, nil, err
	}
	return r, func() { r.Close() }, nil
}

// fileEditor opens an editor over the directory holding file and returns the book id
func (ro *rootOptions) fileEditor(cmd *cobra.Command, file string) (*editor.Editor, string, func(), error) {
	cfg, err := ro.loadConfig(cmd)
	if err != nil {
		return nil, "", nil, err
	}

	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, "", nil, err
	}
	r, err := repo.New(repo.Options{Dir: filepath.Dir(abs), BackupDir: cfg.BackupDir})
	if err != nil {
		return nil, "", nil, err
	}

	locker, closeLocker, err := newLocker(cfg)
	if err != nil {
		return nil, "", nil, err
	}

	ed, err := editor.New(editor.Config{
		Repo:    r,
		Locker:  locker,
		Options: cfg.JoinOptions(),
		Backup:  true,
		Logger:  newLogger(cfg, os.Stderr),
	})
	if err != nil {
		closeLocker()
		return nil, "", nil, err
	}
	return ed, filepath.Base(abs), closeLocker, nil
}

// print writes v as JSON with --json, otherwise calls human
func (ro *rootOptions) print(v interface{}, human func(w io.Writer)) error {
	if !ro.json {
		human(ro.out)
		return nil
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(ro.out, string(b))
	return err
}

// handleError reports err as JSON with --json
func (ro *rootOptions) handleError(err error) error {
	if ro.json && err != nil {
		b, merr := json.Marshal(map[string]string{"error": err.Error()})
		if merr != nil {
			return merr
		}
		_, _ = fmt.Fprintln(ro.out, string(b))
		return nil
	}
	return err
}
