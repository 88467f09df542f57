package commands

import "github.com/urfave/cli/v3"

// NewRoot returns the diffcommit command tree with its global flags bound to
// flags. Callers add the Before and After hooks.
func NewRoot(flags *Flags, version string) *cli.Command {
	root := &cli.Command{
		Name:      "diffcommit",
		Usage:     "Review text changes segment by segment and checkpoint them",
		UsageText: "diffcommit [global options] command [command options]",
		Description: `diffcommit keeps a linear checkpoint history for plain text documents.

Edits to a file, by hand or by a transform, show up as pending changes
against its latest checkpoint. Each change can be kept or rejected before
the result is recorded as the next checkpoint.

Run 'diffcommit diff FILE' to see pending changes and 'diffcommit commit FILE'
to record them.`,
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("DIFFCOMMIT_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to <data-dir>/diffcommit.log)",
				Sources:     cli.EnvVars("DIFFCOMMIT_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("DIFFCOMMIT_CONFIG"),
				Value:       DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("DIFFCOMMIT_DATA_DIR"),
				Value:       DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
	}

	root = NewDiffCmd(flags).Register(root)
	root = NewCommitCmd(flags).Register(root)
	root = NewReviewCmd(flags).Register(root)
	root = NewLogCmd(flags).Register(root)
	root = NewShowCmd(flags).Register(root)
	root = NewRevertCmd(flags).Register(root)
	root = NewTransformCmd(flags).Register(root)
	root = NewDraftCmd(flags).Register(root)
	root = NewDocsCmd(flags).Register(root)
	root = NewWatchCmd(flags).Register(root)
	root = NewBatchCmd(flags).Register(root)
	root = NewDoctorCmd(flags).Register(root)
	root = NewInspectCmd(flags).Register(root)
	root = NewConfigValidateCmd(flags).Register(root)

	return root
}
