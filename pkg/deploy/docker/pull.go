package docker

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/image"
)

// PullImage pulls ref from its registry, discarding the pull's progress
// stream once it completes without error (spec.md §4.5 manager upgrade).
func (b *Backend) PullImage(ctx context.Context, ref string) error {
	rc, err := b.Client.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	return nil
}
