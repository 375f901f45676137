package normalize

import (
	"context"
	"fmt"
	"os/exec"
)

// ExecRunner runs commands on the host. pdftoppm comes from
// poppler-utils (brew install poppler / apt install poppler-utils).
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s: %w: %s", name, err, out)
	}
	return out, nil
}
