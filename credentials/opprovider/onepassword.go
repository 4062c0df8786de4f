// Package opprovider resolves skill secrets with the 1Password CLI, which is
// convenient when running the local server outside AWS.
package opprovider

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/wolfeidau/catso/credentials"
)

// OnePassword returns a Decrypter that treats each ciphertext as an
// op:// secret reference and reads it with `op read`.
func OnePassword() credentials.Decrypter {
	return onePassword("op")
}

func onePassword(bin string) credentials.Decrypter {
	return func(ctx context.Context, ref string) (string, error) {
		cmd := exec.CommandContext(ctx, bin, "read", ref)

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			return "", fmt.Errorf("op read %q: %s: %w", ref, strings.TrimSpace(stderr.String()), err)
		}

		return strings.TrimSpace(stdout.String()), nil
	}
}
