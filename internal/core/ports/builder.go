package ports

import "context"

// BuilderService defines operations for building container images from source code.
type BuilderService interface {
	// BuildImage resolves ref (empty means the default branch) of repoURL and builds
	// an image from that commit on the managed host.
	// It returns the reference of the built image or an error.
	BuildImage(ctx context.Context, repoURL, ref, image string) (string, error)
}
