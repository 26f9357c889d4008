package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/distribution/reference"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"

	"github.com/melih/containerpilot/internal/core/domain"
	"github.com/melih/containerpilot/internal/core/ports"
)

// shortCommitLen matches the length docker uses for short IDs.
const shortCommitLen = 12

type refLister func(ctx context.Context, repoURL string) ([]*plumbing.Reference, error)

// Adapter builds images on the managed host straight from a git remote.
// Nothing is cloned locally; the commit is resolved here so the build is
// pinned and the tag says what went into it.
type Adapter struct {
	exec     ports.RemoteExecutor
	views    ports.ViewRevalidator
	listRefs refLister
	logger   zerolog.Logger
}

var _ ports.BuilderService = (*Adapter)(nil)

func NewBuilderAdapter(exec ports.RemoteExecutor, views ports.ViewRevalidator, logger zerolog.Logger) *Adapter {
	return &Adapter{
		exec:     exec,
		views:    views,
		listRefs: lsRemote,
		logger:   logger.With().Str("component", "builder").Logger(),
	}
}

// BuildImage resolves ref on repoURL and runs docker build against that commit.
// An image without a tag is tagged with the short commit hash.
func (a *Adapter) BuildImage(ctx context.Context, repoURL, ref, image string) (string, error) {
	if strings.TrimSpace(repoURL) == "" {
		return "", domain.NewValidationError("Repository URL is required.")
	}
	if image == "" {
		image = imageNameFromRepo(repoURL)
	}
	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return "", domain.NewValidationError(fmt.Sprintf("Invalid image name %q: %v", image, err))
	}

	commit, err := a.resolve(ctx, repoURL, ref)
	if err != nil {
		return "", err
	}

	target, err := tagImage(named, commit)
	if err != nil {
		return "", err
	}

	if err := a.exec.EnsureConnected(ctx); err != nil {
		return "", err
	}

	cmd := shellquote.Join("docker", "build", "-t", target, repoURL+"#"+commit)
	a.logger.Info().Str("repo", repoURL).Str("commit", commit).Str("image", target).Msg("building image")

	res, err := a.exec.Run(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("failed to build image: %w", err)
	}
	if res.ExitCode != 0 {
		a.logger.Error().Int("exit_code", res.ExitCode).Str("stderr", res.Stderr).Msg("docker build failed")
		return "", domain.ClassifyDockerFailure(res)
	}

	a.views.Revalidate(domain.ViewImages)
	return target, nil
}

// resolve turns a branch, tag or full hash into a commit hash. An empty ref
// means the remote's HEAD.
func (a *Adapter) resolve(ctx context.Context, repoURL, ref string) (string, error) {
	if plumbing.IsHash(ref) {
		return ref, nil
	}

	refs, err := a.listRefs(ctx, repoURL)
	if err != nil {
		return "", fmt.Errorf("failed to list references of %s: %w", repoURL, err)
	}
	byName := make(map[plumbing.ReferenceName]*plumbing.Reference, len(refs))
	for _, r := range refs {
		byName[r.Name()] = r
	}

	var candidates []plumbing.ReferenceName
	if ref == "" || ref == "HEAD" {
		candidates = []plumbing.ReferenceName{plumbing.HEAD}
	} else {
		tag := plumbing.NewTagReferenceName(ref)
		candidates = []plumbing.ReferenceName{
			plumbing.NewBranchReferenceName(ref),
			// Peeled entry first so annotated tags resolve to their commit.
			plumbing.ReferenceName(tag.String() + "^{}"),
			tag,
			plumbing.ReferenceName(ref),
		}
	}

	for _, name := range candidates {
		r, ok := byName[name]
		// HEAD is symbolic when the server advertises symrefs.
		for hops := 0; ok && r.Type() == plumbing.SymbolicReference && hops < 5; hops++ {
			r, ok = byName[r.Target()]
		}
		if ok && r.Type() == plumbing.HashReference {
			return r.Hash().String(), nil
		}
	}

	if ref == "" {
		return "", domain.NewValidationError(fmt.Sprintf("Repository %s has no HEAD.", repoURL))
	}
	return "", domain.NewValidationError(fmt.Sprintf("Reference %q not found in %s.", ref, repoURL))
}

func lsRemote(ctx context.Context, repoURL string) ([]*plumbing.Reference, error) {
	remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: git.DefaultRemoteName,
		URLs: []string{repoURL},
	})
	return remote.ListContext(ctx, &git.ListOptions{PeelingOption: git.AppendPeeled})
}

// tagImage keeps an explicit tag and otherwise tags with the short commit.
func tagImage(named reference.Named, commit string) (string, error) {
	if _, ok := named.(reference.Tagged); ok {
		return reference.FamiliarString(named), nil
	}
	short := commit
	if len(short) > shortCommitLen {
		short = short[:shortCommitLen]
	}
	tagged, err := reference.WithTag(named, short)
	if err != nil {
		return "", domain.NewValidationError(fmt.Sprintf("Cannot tag image with %q: %v", short, err))
	}
	return reference.FamiliarString(tagged), nil
}

// imageNameFromRepo derives a repository name from the last path element of a git URL.
func imageNameFromRepo(repoURL string) string {
	u := strings.TrimSuffix(strings.TrimRight(repoURL, "/"), ".git")
	if i := strings.LastIndexAny(u, ":/"); i >= 0 {
		u = u[i+1:]
	}
	name := strings.ToLower(u)
	if name == "" {
		return "build"
	}
	return name
}
