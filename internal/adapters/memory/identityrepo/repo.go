package identityrepo

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/carhop-rentals/booking-verify-api/internal/domain"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/identityrepo"
)

// Repo is an in-memory implementation of identityrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu      sync.RWMutex
	byEmail map[string]identityrepo.Identity
}

func NewRepo() *Repo {
	return &Repo{byEmail: make(map[string]identityrepo.Identity)}
}

func (r *Repo) Upsert(ctx context.Context, i identityrepo.Identity) (identityrepo.Identity, error) {
	_ = ctx
	key := domain.NormalizeEmail(i.Email)
	if key == "" {
		return identityrepo.Identity{}, errors.New("identity email is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byEmail[key]; ok {
		i.ID = existing.ID
		i.CreatedAt = existing.CreatedAt
	} else if i.ID == "" {
		i.ID = domain.IdentityID(uuid.NewString())
	}
	i.Email = key
	r.byEmail[key] = cloneIdentity(i)
	return cloneIdentity(i), nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (identityrepo.Identity, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return identityrepo.Identity{}, identityrepo.ErrNotFound
	}
	return cloneIdentity(i), nil
}

func cloneIdentity(i identityrepo.Identity) identityrepo.Identity {
	out := i
	if i.AvatarURL != nil {
		v := *i.AvatarURL
		out.AvatarURL = &v
	}
	return out
}
