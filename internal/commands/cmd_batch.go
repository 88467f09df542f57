package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/hay-kot/criterio"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/mindprints/diff-commit/internal/core/config"
	"github.com/mindprints/diff-commit/internal/core/operation"
	"github.com/mindprints/diff-commit/internal/core/session"
	"github.com/mindprints/diff-commit/internal/core/validate"
	"github.com/mindprints/diff-commit/internal/diffcommit"
	"github.com/mindprints/diff-commit/pkg/iojson"
	"github.com/mindprints/diff-commit/pkg/logutils"
	"github.com/mindprints/diff-commit/pkg/randid"
)

type BatchCmd struct {
	flags *Flags
	fr    *iojson.FileReader[BatchInput]
}

func NewBatchCmd(flags *Flags) *BatchCmd {
	return &BatchCmd{
		flags: flags,
		fr:    &iojson.FileReader[BatchInput]{},
	}
}

func (cmd *BatchCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "batch",
		Usage: "Transform and checkpoint many documents from JSON input",
		UsageText: `diffcommit batch [options]

Read from stdin:
  echo '{"documents":[{"path":"README.md","kind":"spelling"}]}' | diffcommit batch

Read from file:
  diffcommit batch -f jobs.json`,
		Description: `Runs a transform over each listed document in order. The result is
written to the file as pending changes, or checkpointed straight away when
"commit" is set.

Processing stops after 3 failures. Documents not attempted are marked as skipped.

Input JSON schema:
  {
    "documents": [
      {
        "path": "notes/draft.md",
        "kind": "grammar",
        "instruction": "optional, for kinds that take one",
        "commit": false,
        "message": "optional checkpoint message",
        "save": true
      }
    ]
  }

Fields:
  path        - Required. Document file.
  kind        - Required. Transform kind from the config.
  instruction - Optional. Free-form instruction for the prompt kind.
  commit      - Optional. Checkpoint the result instead of leaving it pending.
  message     - Optional. Checkpoint message, used with commit.
  save        - Optional. With commit, write the merged text back to the file.

Output is JSON with a batch ID, log file path, and results for each document.`,
		Flags: []cli.Flag{
			cmd.fr.Flag(),
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *BatchCmd) run(ctx context.Context, c *cli.Command) error {
	batchID := randid.Generate(6)
	logFile := filepath.Join(cmd.flags.Config.LogsDir(), "batch-"+batchID+".log")
	errOut := c.Root().ErrWriter

	logger, closer, err := logutils.New(cmd.flags.LogLevel, logFile)
	if err != nil {
		_ = iojson.WriteErrorTo(errOut, fmt.Sprintf("setup logger: %s", err), nil)
		return cli.Exit("", 1)
	}
	defer closer()

	logger.Info().Str("batch_id", batchID).Msg("starting batch processing")

	input, err := cmd.fr.Read()
	if err != nil {
		logger.Error().Err(err).Msg("failed to read input")
		_ = iojson.WriteErrorTo(errOut, fmt.Sprintf("read input: %s", err), nil)
		return cli.Exit("", 1)
	}

	if err := input.Validate(cmd.flags.Config.Transform.Kinds); err != nil {
		logger.Error().Err(err).Msg("input validation failed")
		_ = iojson.WriteErrorTo(errOut, fmt.Sprintf("invalid input: %s", err), nil)
		return cli.Exit("", 1)
	}

	output := runBatch(ctx, cmd.flags.App, input, logger)
	output.BatchID = batchID
	output.LogFile = logFile

	return iojson.WriteWith(c.Root().Writer, errOut, output)
}

// runBatch processes the documents in order, stopping after maxFailures.
func runBatch(ctx context.Context, app *diffcommit.App, input BatchInput, logger zerolog.Logger) BatchOutput {
	output := BatchOutput{Results: make([]BatchResult, 0, len(input.Documents))}

	failures := 0
	for i, job := range input.Documents {
		if failures >= maxFailures || ctx.Err() != nil {
			logger.Warn().Str("path", job.Path).Msg("skipping remaining documents")
			for j := i; j < len(input.Documents); j++ {
				output.Results = append(output.Results, BatchResult{
					Path:   input.Documents[j].Path,
					Kind:   input.Documents[j].Kind,
					Status: StatusSkipped,
				})
			}
			break
		}

		logger.Info().Str("path", job.Path).Str("kind", job.Kind).Int("index", i).Msg("transforming document")

		result := processDocument(ctx, app, job)
		output.Results = append(output.Results, result)

		if result.Status == StatusFailed {
			failures++
			logger.Error().Str("path", job.Path).Str("error", result.Error).Msg("document failed")
		} else {
			logger.Info().Str("path", job.Path).Int("changes", result.Changes).Str("status", result.Status).Msg("document done")
		}
	}

	logger.Info().
		Int("total", len(input.Documents)).
		Int("transformed", countByStatus(output.Results, StatusTransformed)).
		Int("committed", countByStatus(output.Results, StatusCommitted)).
		Int("failed", countByStatus(output.Results, StatusFailed)).
		Int("skipped", countByStatus(output.Results, StatusSkipped)).
		Msg("batch processing complete")

	return output
}

func processDocument(ctx context.Context, app *diffcommit.App, job BatchDocument) BatchResult {
	result := BatchResult{Path: job.Path, Kind: job.Kind}
	fail := func(err error) BatchResult {
		result.Status = StatusFailed
		result.Error = err.Error()
		return result
	}

	doc, err := app.Open(ctx, job.Path)
	if err != nil {
		return fail(err)
	}

	id, err := doc.Transform(job.Kind, job.Instruction)
	if err != nil {
		return fail(err)
	}
	op, err := doc.Operations().Wait(ctx, id)
	if err != nil {
		doc.Operations().Cancel(id)
		return fail(err)
	}
	switch {
	case op.Status == operation.StatusError:
		return fail(op.Err)
	case op.Status == operation.StatusCancelled:
		return fail(errors.New("transform cancelled"))
	case op.Resolution != operation.ResolutionApplied:
		_ = doc.Operations().DiscardStale(id)
		return fail(errors.New("document changed while the transform ran"))
	}

	result.Changes = doc.Stats().Changes

	if !job.Commit {
		if err := doc.Write(ctx); err != nil {
			return fail(err)
		}
		result.Status = StatusTransformed
		return result
	}

	if !doc.Dirty() {
		result.Status = StatusCommitted
		return result
	}
	commit, err := doc.Checkpoint(ctx, session.CheckpointOptions{Message: job.Message, Save: job.Save})
	if err != nil && !errors.Is(err, session.ErrExport) {
		return fail(err)
	}
	result.CommitID = commit.ID
	result.Seq = commit.Seq
	result.Status = StatusCommitted
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

const (
	StatusTransformed = "transformed" // StatusTransformed indicates the result was written as pending changes.
	StatusCommitted   = "committed"   // StatusCommitted indicates the result was checkpointed.
	StatusFailed      = "failed"      // StatusFailed indicates the document could not be processed.
	StatusSkipped     = "skipped"     // StatusSkipped indicates the document was not attempted due to failure threshold.
	maxFailures       = 3             // maxFailures is the number of failures before stopping batch processing.
)

// BatchInput is the JSON input schema for batch transforms.
type BatchInput struct {
	Documents []BatchDocument `json:"documents"`
}

// Validate checks the batch input against the configured transform kinds.
func (b BatchInput) Validate(kinds map[string]config.Kind) error {
	if len(b.Documents) == 0 {
		return criterio.NewFieldErrors("documents", fmt.Errorf("array is empty"))
	}

	var errs criterio.FieldErrorsBuilder
	seen := make(map[string]bool)

	for i, doc := range b.Documents {
		field := fmt.Sprintf("documents[%d]", i)

		if err := validate.DocumentPath(doc.Path); err != nil {
			errs = errs.Append(field+".path", err)
			continue
		}

		abs, err := filepath.Abs(doc.Path)
		if err != nil {
			errs = errs.Append(field+".path", err)
			continue
		}
		if seen[abs] {
			errs = errs.Append(field+".path", fmt.Errorf("duplicate path %q", doc.Path))
			continue
		}
		seen[abs] = true

		if err := validate.Kind(kinds)(doc.Kind); err != nil {
			errs = errs.Append(field+".kind", err)
			continue
		}
		if kinds[doc.Kind].Instruction && doc.Instruction == "" {
			errs = errs.Append(field+".instruction", fmt.Errorf("required for kind %q", doc.Kind))
		}

		if err := validate.Message(doc.Message); err != nil {
			errs = errs.Append(field+".message", err)
		}
	}

	return errs.ToError()
}

// BatchDocument defines a single document to transform.
type BatchDocument struct {
	Path        string `json:"path"`
	Kind        string `json:"kind"`
	Instruction string `json:"instruction,omitempty"`
	Commit      bool   `json:"commit,omitempty"`
	Message     string `json:"message,omitempty"`
	Save        bool   `json:"save,omitempty"`
}

// BatchResult is the output for a single document.
type BatchResult struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	Status   string `json:"status"`
	Changes  int    `json:"changes,omitempty"`
	CommitID string `json:"commit_id,omitempty"`
	Seq      int    `json:"seq,omitempty"`
	Error    string `json:"error,omitempty"`
}

// BatchOutput is the JSON output schema.
type BatchOutput struct {
	BatchID string        `json:"batch_id"`
	LogFile string        `json:"log_file"`
	Results []BatchResult `json:"results"`
}

func countByStatus(results []BatchResult, status string) int {
	count := 0
	for _, r := range results {
		if r.Status == status {
			count++
		}
	}
	return count
}
