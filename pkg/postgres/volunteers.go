package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/intergroup-dev/volunteer-shifts/pkg/core/model"
	"github.com/intergroup-dev/volunteer-shifts/pkg/db"
)

const volunteerColumns = `id, name, email, phone, is_active, is_backup, created_at`

func scanVolunteer(row pgx.Row) (*model.Volunteer, error) {
	var v model.Volunteer
	if err := row.Scan(&v.ID, &v.Name, &v.Email, &v.Phone, &v.IsActive, &v.IsBackup, &v.CreatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

func collectVolunteers(rows pgx.Rows) ([]model.Volunteer, error) {
	defer rows.Close()

	var volunteers []model.Volunteer
	for rows.Next() {
		v, err := scanVolunteer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan volunteer: %w", err)
		}
		volunteers = append(volunteers, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating volunteers: %w", err)
	}
	return volunteers, nil
}

// GetVolunteer retrieves a single volunteer by ID
func (d *DB) GetVolunteer(ctx context.Context, id string) (*model.Volunteer, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT `+volunteerColumns+`
		FROM volunteer
		WHERE id = $1
	`, id)
	volunteer, err := scanVolunteer(row)
	if err != nil {
		return nil, notFound(err)
	}
	return volunteer, nil
}

// GetVolunteerByEmail retrieves a volunteer by email. Emails are stored
// lowercase; callers pass lowercase.
func (d *DB) GetVolunteerByEmail(ctx context.Context, email string) (*model.Volunteer, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT `+volunteerColumns+`
		FROM volunteer
		WHERE email = $1
	`, email)
	volunteer, err := scanVolunteer(row)
	if err != nil {
		return nil, notFound(err)
	}
	return volunteer, nil
}

// InsertVolunteer inserts a new volunteer record. A duplicate email returns
// ErrDuplicate.
func (d *DB) InsertVolunteer(ctx context.Context, volunteer *model.Volunteer) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO volunteer (id, name, email, phone, is_active, is_backup, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, volunteer.ID, volunteer.Name, volunteer.Email, volunteer.Phone, volunteer.IsActive, volunteer.IsBackup, volunteer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return db.ErrDuplicate
		}
		return fmt.Errorf("failed to insert volunteer: %w", err)
	}
	return nil
}

// UpdateVolunteer persists changes to an existing volunteer
func (d *DB) UpdateVolunteer(ctx context.Context, volunteer *model.Volunteer) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE volunteer
		SET name = $2, email = $3, phone = $4, is_active = $5, is_backup = $6
		WHERE id = $1
	`, volunteer.ID, volunteer.Name, volunteer.Email, volunteer.Phone, volunteer.IsActive, volunteer.IsBackup)
	if err != nil {
		return fmt.Errorf("failed to update volunteer %s: %w", volunteer.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

// ListVolunteers retrieves all volunteer records
func (d *DB) ListVolunteers(ctx context.Context) ([]model.Volunteer, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+volunteerColumns+`
		FROM volunteer
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query volunteers: %w", err)
	}
	return collectVolunteers(rows)
}

// ListVolunteersByID retrieves the given volunteers keyed by ID. Unknown IDs
// are simply absent from the result.
func (d *DB) ListVolunteersByID(ctx context.Context, ids []string) (map[string]model.Volunteer, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+volunteerColumns+`
		FROM volunteer
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query volunteers by id: %w", err)
	}
	volunteers, err := collectVolunteers(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]model.Volunteer, len(volunteers))
	for _, v := range volunteers {
		byID[v.ID] = v
	}
	return byID, nil
}

// ListActiveVolunteers retrieves active volunteers, optionally narrowed to
// the backup escalation pool
func (d *DB) ListActiveVolunteers(ctx context.Context, backupsOnly bool) ([]model.Volunteer, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+volunteerColumns+`
		FROM volunteer
		WHERE is_active = TRUE AND ($1 = FALSE OR is_backup = TRUE)
		ORDER BY name
	`, backupsOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query active volunteers: %w", err)
	}
	return collectVolunteers(rows)
}
