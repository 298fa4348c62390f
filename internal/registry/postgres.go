package registry

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"lekha.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store on PostgreSQL. Activation and toggling run in
// serializable transactions with the target row locked FOR UPDATE, so two
// concurrent SetActive calls can never both observe "no active artifact"
// and both win.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const artifactColumns = `id, name, arch, version, description, blob_ref, enabled, is_active, owner_id, created_at`

func (s *PGStore) Create(ctx context.Context, a *Artifact) error {
	if a.ID == "" {
		a.ID = ids.New()
	}
	owner := sql.NullString{String: a.OwnerID, Valid: a.OwnerID != ""}
	return s.db.QueryRowContext(ctx, `
		insert into ml_models(id, name, arch, version, description, blob_ref, enabled, is_active, owner_id)
		values ($1,$2,$3,$4,$5,$6,$7,false,$8)
		returning created_at
	`, a.ID, a.Name, a.Architecture, a.Version, a.Description, a.BlobRef, a.Enabled, owner).Scan(&a.CreatedAt)
}

func (s *PGStore) Get(ctx context.Context, id string) (*Artifact, error) {
	return scanArtifact(s.db.QueryRowContext(ctx,
		`select `+artifactColumns+` from ml_models where id=$1`, id))
}

func (s *PGStore) List(ctx context.Context) ([]*Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+artifactColumns+` from ml_models order by created_at desc, id desc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PGStore) GetActive(ctx context.Context) (*Artifact, error) {
	a, err := scanArtifact(s.db.QueryRowContext(ctx,
		`select `+artifactColumns+` from ml_models where is_active`))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoActive
	}
	return a, err
}

func (s *PGStore) Toggle(ctx context.Context, id string, enabled bool) (*Artifact, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := lockArtifact(ctx, tx, id); err != nil {
		return nil, err
	}
	// Disabling the active artifact clears the active flag in the same
	// update: active implies enabled, always.
	a, err := scanArtifact(tx.QueryRowContext(ctx, `
		update ml_models
		set enabled=$2, is_active=(is_active and $2)
		where id=$1
		returning `+artifactColumns, id, enabled))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *PGStore) SetActive(ctx context.Context, id string) (*Artifact, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	locked, err := lockArtifact(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !locked.Enabled {
		return nil, ErrInvalidState
	}
	if _, err := tx.ExecContext(ctx,
		`update ml_models set is_active=false where is_active and id<>$1`, id); err != nil {
		return nil, err
	}
	a, err := scanArtifact(tx.QueryRowContext(ctx,
		`update ml_models set is_active=true where id=$1 returning `+artifactColumns, id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *PGStore) Delete(ctx context.Context, id string) (*Artifact, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	a, err := lockArtifact(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	// inference_events.model_id carries ON DELETE SET NULL, so history
	// survives the artifact.
	if _, err := tx.ExecContext(ctx, `delete from ml_models where id=$1`, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *PGStore) InsertEvent(ctx context.Context, e *Event) error {
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.Source == "" {
		e.Source = "web"
	}
	user := sql.NullString{String: e.UserID, Valid: e.UserID != ""}
	model := sql.NullString{String: e.ModelID, Valid: e.ModelID != ""}
	return s.db.QueryRowContext(ctx, `
		insert into inference_events(id, user_id, model_id, source)
		values ($1,$2,$3,$4)
		returning created_at
	`, e.ID, user, model, e.Source).Scan(&e.CreatedAt)
}

func (s *PGStore) Stats(ctx context.Context, since time.Time) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `
		select count(*), count(*) filter (where enabled) from ml_models
	`).Scan(&st.TotalModels, &st.EnabledModels); err != nil {
		return Stats{}, err
	}

	active, err := s.GetActive(ctx)
	if err != nil && !errors.Is(err, ErrNoActive) {
		return Stats{}, err
	}
	st.Active = active

	if err := s.db.QueryRowContext(ctx, `
		select count(distinct user_id) from inference_events
		where created_at >= $1 and user_id is not null
	`, since).Scan(&st.ActiveUsers); err != nil {
		return Stats{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select to_char(date(created_at), 'YYYY-MM-DD'), count(*)
		from inference_events
		where created_at >= $1
		group by date(created_at)
		order by date(created_at)
	`, since)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var d DailyCount
		if err := rows.Scan(&d.Day, &d.Count); err != nil {
			return Stats{}, err
		}
		st.Daily = append(st.Daily, d)
	}
	return st, rows.Err()
}

// lockArtifact takes a row lock on the target so concurrent activation and
// toggling serialize on it.
func lockArtifact(ctx context.Context, tx *sql.Tx, id string) (*Artifact, error) {
	return scanArtifact(tx.QueryRowContext(ctx,
		`select `+artifactColumns+` from ml_models where id=$1 for update`, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (*Artifact, error) {
	var (
		a     Artifact
		owner sql.NullString
	)
	err := row.Scan(&a.ID, &a.Name, &a.Architecture, &a.Version, &a.Description,
		&a.BlobRef, &a.Enabled, &a.Active, &owner, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if owner.Valid {
		a.OwnerID = owner.String
	}
	return &a, nil
}
