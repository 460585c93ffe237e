package identityrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carhop-rentals/booking-verify-api/internal/domain"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/identityrepo"
)

// Repo is a Postgres implementation of identityrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Upsert(ctx context.Context, i identityrepo.Identity) (identityrepo.Identity, error) {
	if r.pool == nil {
		return identityrepo.Identity{}, errors.New("nil postgres pool")
	}
	email := domain.NormalizeEmail(i.Email)
	if email == "" {
		return identityrepo.Identity{}, errors.New("identity email is required")
	}
	id := uuid.New()
	if i.ID != "" {
		parsed, err := uuid.Parse(string(i.ID))
		if err != nil {
			return identityrepo.Identity{}, fmt.Errorf("invalid identity id: %w", err)
		}
		id = parsed
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO identities (
			external_id,
			subject_sub,
			email,
			display_name,
			avatar_url,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (email) DO UPDATE SET
			subject_sub = EXCLUDED.subject_sub,
			display_name = EXCLUDED.display_name,
			avatar_url = EXCLUDED.avatar_url,
			updated_at = EXCLUDED.updated_at
		RETURNING external_id, subject_sub, email, display_name, avatar_url, created_at, updated_at
	`,
		id,
		string(i.Subject),
		email,
		i.DisplayName,
		i.AvatarURL,
		i.CreatedAt.UTC(),
		i.UpdatedAt.UTC(),
	)
	return scanIdentity(row)
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (identityrepo.Identity, error) {
	if r.pool == nil {
		return identityrepo.Identity{}, errors.New("nil postgres pool")
	}
	row := r.pool.QueryRow(ctx, `
		SELECT external_id, subject_sub, email, display_name, avatar_url, created_at, updated_at
		FROM identities
		WHERE email = $1
	`, domain.NormalizeEmail(email))
	out, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return identityrepo.Identity{}, identityrepo.ErrNotFound
	}
	return out, err
}

func scanIdentity(row pgx.Row) (identityrepo.Identity, error) {
	var (
		id  uuid.UUID
		sub string
		out identityrepo.Identity
	)
	if err := row.Scan(&id, &sub, &out.Email, &out.DisplayName, &out.AvatarURL, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return identityrepo.Identity{}, err
	}
	out.ID = domain.IdentityID(id.String())
	out.Subject = domain.SubjectID(sub)
	out.CreatedAt = out.CreatedAt.UTC()
	out.UpdatedAt = out.UpdatedAt.UTC()
	return out, nil
}
