package experiment

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"flow-trainer/logging"
)

// Unavailable is recorded in place of provenance that could not be determined
const Unavailable = "unavailable"

// RevisionFunc returns the source-control revision of the running code
type RevisionFunc func(ctx context.Context) (string, error)

// GitRevision returns the commit hash of HEAD in the working directory
func GitRevision(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "git", "rev-parse", "HEAD").Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse HEAD: %w", err)
	}
	rev := strings.TrimSpace(string(out))
	if rev == "" {
		return "", fmt.Errorf("git rev-parse HEAD: empty output")
	}
	return rev, nil
}

// lookupRevision never fails: any error degrades to Unavailable
func lookupRevision(ctx context.Context, fn RevisionFunc) string {
	if fn == nil {
		fn = GitRevision
	}
	rev, err := fn(ctx)
	if err != nil || rev == "" {
		logging.Debug("Source revision unavailable", logging.Experiment, "error", err)
		return Unavailable
	}
	return rev
}
