package notify

import (
	"context"
	"os/exec"
)

// Desktop shows a transient notification through notify-send, replacing the
// previous one so the status does not pile up.
func Desktop(ctx context.Context, title, body string) error {
	return exec.CommandContext(ctx, "notify-send",
		"--app-name=vox",
		"--hint=string:x-canonical-private-synchronous:vox",
		"--expire-time=3000",
		title, body,
	).Run()
}
