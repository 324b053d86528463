package action

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/monoco-io/fabric/pkg/log"
	"github.com/monoco-io/fabric/pkg/types"
)

// testSummaryRules extract pass/fail/total counts from test runner
// output. The first matching rule per counter wins.
var testSummaryRules = []struct {
	field string
	re    *regexp.Regexp
}{
	{"passed", regexp.MustCompile(`(?i)(\d+)\s+pass(?:ed|ing)?`)},
	{"failed", regexp.MustCompile(`(?i)(\d+)\s+fail(?:ed|ing)?`)},
	{"total", regexp.MustCompile(`(?i)(\d+)\s+(?:total|tests? run)`)},
}

// RunTest executes an external test command and parses its summary.
// Success follows the exit code, not the parsed counts.
type RunTest struct {
	command []string
	runner  *Runner
	logger  zerolog.Logger
}

// NewRunTest creates a test-runner action. dir is the working
// directory for the command.
func NewRunTest(dir string, command []string, timeout time.Duration) *RunTest {
	runner := NewRunner(dir)
	if timeout > 0 {
		runner = runner.WithTimeout(timeout)
	}
	return &RunTest{
		command: command,
		runner:  runner,
		logger:  log.WithComponent("action"),
	}
}

// Name returns the action name
func (a *RunTest) Name() string {
	return "run-test"
}

// CanExecute requires a configured command
func (a *RunTest) CanExecute(ctx context.Context, event *types.Event) (bool, error) {
	return len(a.command) > 0, nil
}

// Execute runs the test command and reports counts plus exit status
func (a *RunTest) Execute(ctx context.Context, event *types.Event) (*types.ActionResult, error) {
	res, err := a.runner.Run(ctx, a.command[0], a.command[1:]...)
	if err != nil {
		return nil, err
	}

	output := res.CombinedOutput()
	counts := parseTestSummary(output)
	counts["exit_code"] = res.ExitCode

	a.logger.Info().
		Int("exit_code", res.ExitCode).
		Interface("counts", counts).
		Msg("Test command finished")

	if res.ExitCode != 0 {
		result := FailureResult("test command exited with code " + strconv.Itoa(res.ExitCode))
		result.Output = counts
		result.Metadata["output"] = output
		return result, nil
	}
	result := SuccessResult(counts)
	result.Metadata["output"] = output
	return result, nil
}

// parseTestSummary applies the summary rules to runner output
func parseTestSummary(output string) map[string]any {
	counts := map[string]any{}
	for _, rule := range testSummaryRules {
		m := rule.re.FindStringSubmatch(output)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil {
			counts[rule.field] = n
		}
	}
	return counts
}
