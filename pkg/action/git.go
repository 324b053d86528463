package action

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/monoco-io/fabric/pkg/log"
	"github.com/monoco-io/fabric/pkg/types"
)

// GitCommit stages and commits workspace changes. A clean working
// tree is not a failure: the action succeeds with a no_changes
// marker so chains continue.
type GitCommit struct {
	repoDir         string
	files           []string // empty means `git add -A`
	messageTemplate string
	runner          *Runner
	logger          zerolog.Logger
}

// NewGitCommit creates a commit action for repoDir. messageTemplate
// is expanded against the event payload.
func NewGitCommit(repoDir, messageTemplate string, files []string) *GitCommit {
	return &GitCommit{
		repoDir:         repoDir,
		files:           files,
		messageTemplate: messageTemplate,
		runner:          NewRunner(repoDir),
		logger:          log.WithComponent("action"),
	}
}

// WithTimeout bounds each git invocation
func (a *GitCommit) WithTimeout(timeout time.Duration) *GitCommit {
	a.runner.WithTimeout(timeout)
	return a
}

// Name returns the action name
func (a *GitCommit) Name() string {
	return "git-commit"
}

// CanExecute requires a repository directory
func (a *GitCommit) CanExecute(ctx context.Context, event *types.Event) (bool, error) {
	return a.repoDir != "", nil
}

// Execute stages, checks for changes, commits, and returns the hash
func (a *GitCommit) Execute(ctx context.Context, event *types.Event) (*types.ActionResult, error) {
	addArgs := []string{"add", "-A"}
	if len(a.files) > 0 {
		addArgs = append([]string{"add", "--"}, a.files...)
	}
	if res, err := a.runner.Run(ctx, "git", addArgs...); err != nil {
		return nil, err
	} else if res.ExitCode != 0 {
		return FailureResult("git add failed: " + res.CombinedOutput()), nil
	}

	status, err := a.runner.Run(ctx, "git", "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(status.Stdout) == "" {
		result := SuccessResult(map[string]any{"no_changes": true})
		a.logger.Debug().Str("repo", a.repoDir).Msg("Working tree clean, nothing to commit")
		return result, nil
	}

	message := ExpandTemplate(a.messageTemplate, event)
	if message == "" {
		message = "Automated commit"
	}
	commit, err := a.runner.Run(ctx, "git", "commit", "-m", message)
	if err != nil {
		return nil, err
	}
	if commit.ExitCode != 0 {
		return FailureResult("git commit failed: " + commit.CombinedOutput()), nil
	}

	rev, err := a.runner.Run(ctx, "git", "rev-parse", "HEAD")
	if err != nil {
		return nil, err
	}
	hash := strings.TrimSpace(rev.Stdout)

	a.logger.Info().
		Str("repo", a.repoDir).
		Str("commit", hash).
		Msg("Changes committed")
	return SuccessResult(map[string]any{"commit": hash, "message": message}), nil
}

// GitPush pushes the current (or a configured) branch to its remote
type GitPush struct {
	repoDir        string
	branch         string // empty means push the current branch
	remote         string
	forceWithLease bool
	runner         *Runner
	logger         zerolog.Logger
}

// NewGitPush creates a push action for repoDir
func NewGitPush(repoDir, remote, branch string, forceWithLease bool) *GitPush {
	if remote == "" {
		remote = "origin"
	}
	return &GitPush{
		repoDir:        repoDir,
		branch:         branch,
		remote:         remote,
		forceWithLease: forceWithLease,
		runner:         NewRunner(repoDir),
		logger:         log.WithComponent("action"),
	}
}

// WithTimeout bounds each git invocation
func (a *GitPush) WithTimeout(timeout time.Duration) *GitPush {
	a.runner.WithTimeout(timeout)
	return a
}

// Name returns the action name
func (a *GitPush) Name() string {
	return "git-push"
}

// CanExecute requires a repository directory
func (a *GitPush) CanExecute(ctx context.Context, event *types.Event) (bool, error) {
	return a.repoDir != "", nil
}

// Execute resolves the branch if needed and pushes
func (a *GitPush) Execute(ctx context.Context, event *types.Event) (*types.ActionResult, error) {
	branch := a.branch
	if branch == "" {
		rev, err := a.runner.Run(ctx, "git", "rev-parse", "--abbrev-ref", "HEAD")
		if err != nil {
			return nil, err
		}
		if rev.ExitCode != 0 {
			return FailureResult("failed to resolve current branch: " + rev.CombinedOutput()), nil
		}
		branch = strings.TrimSpace(rev.Stdout)
	}

	args := []string{"push", a.remote, branch}
	if a.forceWithLease {
		args = append(args, "--force-with-lease")
	}
	res, err := a.runner.Run(ctx, "git", args...)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return FailureResult("git push failed: " + res.CombinedOutput()), nil
	}

	a.logger.Info().
		Str("repo", a.repoDir).
		Str("remote", a.remote).
		Str("branch", branch).
		Msg("Branch pushed")
	return SuccessResult(map[string]any{"remote": a.remote, "branch": branch}), nil
}
