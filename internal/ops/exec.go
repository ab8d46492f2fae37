package ops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/harrison/filebatch/internal/executor"
	"github.com/harrison/filebatch/internal/models"
)

// Placeholders substituted into each argument of an exec command template.
const (
	PlaceholderPath = "{}"
	PlaceholderOut  = "{out}"
)

// waitDelay bounds how long a killed child may hold its output pipes open.
const waitDelay = 2 * time.Second

type execOp struct {
	template  []string
	outExt    string
	dryRun    bool
	overwrite bool
	binary    string
}

func newExec(o Options) *execOp {
	return &execOp{
		template:  strings.Fields(o.Command),
		outExt:    models.NormalizeSuffix(o.OutExt),
		dryRun:    o.DryRun,
		overwrite: o.Overwrite,
	}
}

func (o *execOp) Name() string { return "exec" }
func (o *execOp) Description() string {
	return "Run an external command per file ({} is the path, {out} the derived output)"
}
func (o *execOp) DefaultInclude() []string { return nil }

// Preflight resolves the command binary so a missing tool fails the run
// before any file is touched.
func (o *execOp) Preflight() error {
	if len(o.template) == 0 {
		return executor.NewConfigurationError("cmd", "exec requires a command template (--cmd)")
	}
	if o.usesOut() && o.outExt == "" {
		return executor.NewConfigurationError("out-ext", "command uses %s but no output extension is set", PlaceholderOut)
	}

	path, err := exec.LookPath(o.template[0])
	if err != nil {
		return executor.NewConfigurationError("cmd", "%s not found: %v", o.template[0], err)
	}
	o.binary = path
	return nil
}

func (o *execOp) usesOut() bool {
	for _, arg := range o.template {
		if strings.Contains(arg, PlaceholderOut) {
			return true
		}
	}
	return false
}

// Args expands the command template for one input path. Substituted text is
// never rescanned, so paths containing placeholders pass through intact.
func (o *execOp) Args(path string) []string {
	r := strings.NewReplacer(PlaceholderOut, derivedPath(path, o.outExt), PlaceholderPath, path)
	args := make([]string, 0, len(o.template)-1)
	for _, arg := range o.template[1:] {
		args = append(args, r.Replace(arg))
	}
	return args
}

func (o *execOp) Apply(ctx context.Context, entry models.PathEntry) (models.TaskResult, error) {
	if o.binary == "" {
		return models.TaskResult{}, errors.New("exec used without preflight")
	}

	var out string
	if o.usesOut() {
		out = derivedPath(entry.Path, o.outExt)
		if !o.overwrite {
			if _, err := os.Stat(out); err == nil {
				return models.Skipped(entry, models.ReasonTargetExists).WithDetail(out), nil
			}
		}
	}

	if o.dryRun {
		return models.Skipped(entry, models.ReasonDryRun).
			WithDetail(strings.Join(append([]string{o.template[0]}, o.Args(entry.Path)...), " ")), nil
	}

	// Killed when the task's time budget runs out.
	cmd := exec.CommandContext(ctx, o.binary, o.Args(entry.Path)...)
	cmd.WaitDelay = waitDelay
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.TaskResult{}, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if line := lastLine(output); line != "" {
				return models.TaskResult{}, fmt.Errorf("exit status %d: %s", exitErr.ExitCode(), line)
			}
			return models.TaskResult{}, fmt.Errorf("exit status %d", exitErr.ExitCode())
		}
		return models.TaskResult{}, err
	}

	// The command may have rewritten the file in place.
	after := entry.Size
	if info, err := os.Stat(entry.Path); err == nil {
		after = info.Size()
	} else if errors.Is(err, os.ErrNotExist) {
		after = 0
	}

	result := models.Success(entry, entry.Size, after)
	if out != "" {
		return result.WithDetail(out), nil
	}
	return result.WithDetail(lastLine(output)), nil
}

func lastLine(output []byte) string {
	output = bytes.TrimSpace(output)
	if i := bytes.LastIndexByte(output, '\n'); i >= 0 {
		output = output[i+1:]
	}
	return string(output)
}
