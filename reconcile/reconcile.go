package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/YunoHost/apps-tools/catalog"
	"github.com/YunoHost/apps-tools/forge"
	"github.com/YunoHost/apps-tools/giturl"
)

const DefaultCooldown = 5 * time.Second

// Catalog provides the applications which should be mirrored
type Catalog interface {
	Entries() ([]catalog.Entry, error)
}

// Forge is the subset of the forge API used to manage mirrors
type Forge interface {
	ListMirrors(ctx context.Context) ([]string, error)
	CreateMirror(ctx context.Context, opts forge.MigrateRepoOptions) error
	EditRepo(ctx context.Context, owner, repo string, opts forge.EditRepoOptions) error
}

// Config is the configuration of the Reconciler
type Config struct {
	// Owner is the forge user or organization owning the mirrors
	Owner string
	// UpstreamOrg is the organization whose repositories are mirrored
	UpstreamOrg *giturl.OrgURL
	// UpstreamToken is used by the forge to pull from upstream
	UpstreamToken string
	// Service is the type of the upstream forge e.g. 'github'
	Service string
	// Cooldown is the time to wait between two mirror creations
	Cooldown time.Duration
	// DryRun only computes the plan, forge is not modified
	DryRun bool
}

// Result summarises a reconciliation run
type Result struct {
	Plan *Plan
	// Created are names of created and configured mirrors
	Created []string
	// AlreadyExisting are names of missing mirrors which forge reported as existing
	AlreadyExisting []string
}

// Reconciler creates the mirrors missing on the forge
type Reconciler struct {
	conf    Config
	catalog Catalog
	forge   Forge
	log     *slog.Logger
}

// New creates Reconciler from the given config
func New(conf Config, cat Catalog, f Forge, log *slog.Logger) (*Reconciler, error) {
	if conf.Owner == "" {
		return nil, fmt.Errorf("mirrors owner is required")
	}
	if conf.UpstreamOrg == nil {
		return nil, fmt.Errorf("upstream organization is required")
	}
	if conf.Service == "" {
		return nil, fmt.Errorf("upstream service is required")
	}
	if conf.Cooldown < 0 {
		return nil, fmt.Errorf("cooldown cannot be negative")
	}
	if cat == nil || f == nil {
		return nil, fmt.Errorf("catalog and forge are required")
	}

	if log == nil {
		log = slog.Default()
	}

	return &Reconciler{
		conf:    conf,
		catalog: cat,
		forge:   f,
		log:     log,
	}, nil
}

// Run reads catalog and existing mirrors and creates all missing mirrors.
// Any unexpected forge response stops the run, mirrors created before the
// failure are kept and will be seen as present on next run.
func (r *Reconciler) Run(ctx context.Context) (*Result, error) {
	entries, err := r.catalog.Entries()
	if err != nil {
		return nil, fmt.Errorf("unable to read catalog err:%w", err)
	}

	mirrors, err := r.forge.ListMirrors(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to list existing mirrors err:%w", err)
	}

	plan := Diff(entries, mirrors, r.conf.UpstreamOrg)
	setMissingMirrors(len(plan.Missing))

	r.log.Info("catalog compared with forge mirrors",
		"apps", len(entries), "mirrors", len(mirrors), "missing", len(plan.Missing),
		"out_of_org", len(plan.OutOfOrg), "orphaned", len(plan.Orphaned))

	for _, name := range plan.Orphaned {
		r.log.Info("mirror has no matching app in catalog", "repo", name)
	}

	result := &Result{Plan: plan}

	if r.conf.DryRun {
		return result, nil
	}

	for i, entry := range plan.Missing {
		created, err := r.ensureMirror(ctx, entry)
		if err != nil {
			return result, err
		}

		if !created {
			result.AlreadyExisting = append(result.AlreadyExisting, entry.Name)
			continue
		}
		result.Created = append(result.Created, entry.Name)

		// cooldown the API before next creation
		if i < len(plan.Missing)-1 {
			if err := sleep(ctx, r.conf.Cooldown); err != nil {
				return result, err
			}
		}
	}

	r.log.Info("mirrors synchronised", "created", len(result.Created), "already_existing", len(result.AlreadyExisting))

	return result, nil
}

// ensureMirror creates and configures mirror of the given entry. it returns
// false if forge already has a repository with the same name.
func (r *Reconciler) ensureMirror(ctx context.Context, entry catalog.Entry) (bool, error) {
	log := r.log.With("repo", entry.Name)

	log.Info("a mirror must be created", "remote", entry.URL)

	err := r.forge.CreateMirror(ctx, forge.MigrateRepoOptions{
		CloneAddr: entry.URL,
		AuthToken: r.conf.UpstreamToken,
		Mirror:    true,
		RepoName:  entry.Name,
		RepoOwner: r.conf.Owner,
		Service:   r.conf.Service,
	})
	switch {
	case errors.Is(err, forge.ErrAlreadyExists):
		log.Info("a repository with same name already exists")
		recordMirror(outcomeAlreadyExists)
		return false, nil
	case err != nil:
		recordMirror(outcomeFailed)
		return false, fmt.Errorf("unable to create mirror of '%s' err:%w", entry.URL, err)
	}

	if err := r.forge.EditRepo(ctx, r.conf.Owner, entry.Name, forge.DisabledFeatures()); err != nil {
		recordMirror(outcomeFailed)
		return false, fmt.Errorf("unable to configure mirror '%s' err:%w", entry.Name, err)
	}

	log.Info("repository mirrored and configured")
	recordMirror(outcomeCreated)

	return true, nil
}

// sleep waits for given duration or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
