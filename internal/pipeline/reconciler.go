package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stefbowerman/undftd-cli/internal/models"
	"github.com/stefbowerman/undftd-cli/internal/ratelimit"
)

// Directory is the remote customer directory.
type Directory interface {
	// SearchCustomers returns customers that may match identifier. The result
	// can contain near matches.
	SearchCustomers(ctx context.Context, identifier string) ([]models.DirectoryCustomer, error)
	// CreateCustomer creates a customer and returns it with its assigned id.
	CreateCustomer(ctx context.Context, input models.CustomerInput) (models.DirectoryCustomer, error)
}

// LookupKind tags a Lookup.
type LookupKind int

const (
	NotFound LookupKind = iota
	Found
)

func (k LookupKind) String() string {
	if k == Found {
		return "found"
	}
	return "not_found"
}

// Lookup is the outcome of searching the directory for one identifier.
// Match is only set when Kind is Found.
type Lookup struct {
	Kind        LookupKind
	Match       models.DirectoryCustomer
	NearMatches int
}

// Reconciler finds or creates the directory customer for an entrant.
type Reconciler struct {
	dir     Directory
	limiter ratelimit.Limiter
	tags    []string
	logger  *slog.Logger
}

// ReconcilerConfig holds optional Reconciler settings.
type ReconcilerConfig struct {
	// Tags are attached to customers created by the reconciler.
	Tags   []string
	Logger *slog.Logger
}

// NewReconciler creates a reconciler. Every directory call takes one token
// from limiter.
func NewReconciler(dir Directory, limiter ratelimit.Limiter, cfg ReconcilerConfig) *Reconciler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		dir:     dir,
		limiter: limiter,
		tags:    cfg.Tags,
		logger:  logger.With("component", "reconciler"),
	}
}

// Lookup searches the directory and keeps only exact matches on the
// normalized identifier.
func (r *Reconciler) Lookup(ctx context.Context, identifier string) (Lookup, error) {
	if err := r.limiter.Acquire(ctx, 1); err != nil {
		return Lookup{}, fmt.Errorf("pace directory search: %w", err)
	}

	candidates, err := r.dir.SearchCustomers(ctx, identifier)
	if err != nil {
		return Lookup{}, fmt.Errorf("%w: search %s: %w", ErrDirectoryLookup, identifier, err)
	}

	want := models.NormalizeIdentifier(identifier)
	var (
		exact []models.DirectoryCustomer
		seen  = make(map[string]bool)
		near  int
	)
	for _, c := range candidates {
		if models.NormalizeIdentifier(c.Email) != want {
			near++
			continue
		}
		// Search can list the same customer more than once.
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		exact = append(exact, c)
	}

	switch len(exact) {
	case 0:
		return Lookup{Kind: NotFound, NearMatches: near}, nil
	case 1:
		return Lookup{Kind: Found, Match: exact[0], NearMatches: near}, nil
	default:
		return Lookup{}, fmt.Errorf("%w: %w: %d customers carry %s", ErrDirectoryLookup, ErrAmbiguousMatch, len(exact), identifier)
	}
}

// Reconcile returns the directory customer for e, creating it when the
// directory has no exact match. Shipping and variant fields are taken from e.
func (r *Reconciler) Reconcile(ctx context.Context, e models.Entrant) (models.Customer, error) {
	id := e.Identifier()
	if id == "" {
		return models.Customer{}, fmt.Errorf("%w: entrant on row %d has no email", ErrDirectoryLookup, e.Row)
	}

	lookup, err := r.Lookup(ctx, id)
	if err != nil {
		return models.Customer{}, err
	}

	if lookup.Kind == Found {
		r.logger.Debug("customer found", "identifier", id, "remote_id", lookup.Match.ID, "near_matches", lookup.NearMatches)
		return models.NewCustomer(lookup.Match, e, false), nil
	}

	if err := r.limiter.Acquire(ctx, 1); err != nil {
		return models.Customer{}, fmt.Errorf("pace directory create: %w", err)
	}

	created, err := r.dir.CreateCustomer(ctx, e.IdentityInput(r.tags))
	if err != nil {
		return models.Customer{}, fmt.Errorf("%w: create %s: %w", ErrDirectoryCreate, id, err)
	}
	if created.ID == "" {
		return models.Customer{}, fmt.Errorf("%w: create %s: directory returned no id", ErrDirectoryCreate, id)
	}

	r.logger.Debug("customer created", "identifier", id, "remote_id", created.ID)
	return models.NewCustomer(created, e, true), nil
}

// Stage returns the reconciliation stage for a Runner.
func (r *Reconciler) Stage() Stage[models.Entrant, models.Customer] {
	return Stage[models.Entrant, models.Customer]{
		Name:     StageReconciliation,
		Process:  r.Reconcile,
		Identify: models.Entrant.Identifier,
	}
}
