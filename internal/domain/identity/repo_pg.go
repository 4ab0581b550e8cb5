package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilink/hms/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG creates the Postgres-backed account repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const (
	adminCols = `id, username, password_digest, full_name, email, phone,
		is_active, created_at, updated_at`
	doctorCols = `id, doctor_code, password_digest, full_name, email, phone,
		university, specialization, qualification, address, created_by,
		is_active, created_at, updated_at`
	patientCols = `id, email, password_digest, full_name, phone,
		age, gender, address, blood_group, emergency_contact,
		is_active, created_at, updated_at`
)

func colsFor(kind Kind) string {
	switch kind.Name {
	case KindAdmin.Name:
		return adminCols
	case KindDoctor.Name:
		return doctorCols
	default:
		return patientCols
	}
}

func scanIdentity(kind Kind, row pgx.Row) (*Identity, error) {
	var id Identity
	id.UserType = kind.UserType
	var err error
	switch kind.Name {
	case KindAdmin.Name:
		err = row.Scan(&id.ID, &id.NaturalKey, &id.PasswordDigest, &id.FullName, &id.Email, &id.Phone,
			&id.Active, &id.CreatedAt, &id.UpdatedAt)
	case KindDoctor.Name:
		var d DoctorProfile
		err = row.Scan(&id.ID, &id.NaturalKey, &id.PasswordDigest, &id.FullName, &id.Email, &id.Phone,
			&d.University, &d.Specialization, &d.Qualification, &d.Address, &d.CreatedBy,
			&id.Active, &id.CreatedAt, &id.UpdatedAt)
		id.Doctor = &d
	default:
		var p PatientProfile
		err = row.Scan(&id.ID, &id.NaturalKey, &id.PasswordDigest, &id.FullName, &id.Phone,
			&p.Age, &p.Gender, &p.Address, &p.BloodGroup, &p.EmergencyContact,
			&id.Active, &id.CreatedAt, &id.UpdatedAt)
		id.Email = id.NaturalKey
		id.Patient = &p
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *repoPG) Create(ctx context.Context, kind Kind, id *Identity) error {
	id.ID = uuid.New()
	var err error
	switch kind.Name {
	case KindAdmin.Name:
		err = r.conn(ctx).QueryRow(ctx, `
			INSERT INTO admins (id, username, password_digest, full_name, email, phone)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING is_active, created_at, updated_at`,
			id.ID, id.NaturalKey, id.PasswordDigest, id.FullName, id.Email, id.Phone).
			Scan(&id.Active, &id.CreatedAt, &id.UpdatedAt)
	case KindDoctor.Name:
		d := id.Doctor
		err = r.conn(ctx).QueryRow(ctx, `
			INSERT INTO doctors (id, doctor_code, password_digest, full_name, email, phone,
				university, specialization, qualification, address, created_by)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			RETURNING is_active, created_at, updated_at`,
			id.ID, id.NaturalKey, id.PasswordDigest, id.FullName, id.Email, id.Phone,
			d.University, d.Specialization, d.Qualification, d.Address, d.CreatedBy).
			Scan(&id.Active, &id.CreatedAt, &id.UpdatedAt)
	default:
		p := id.Patient
		err = r.conn(ctx).QueryRow(ctx, `
			INSERT INTO patients (id, email, password_digest, full_name, phone,
				age, gender, address, blood_group, emergency_contact)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			RETURNING is_active, created_at, updated_at`,
			id.ID, id.NaturalKey, id.PasswordDigest, id.FullName, id.Phone,
			p.Age, p.Gender, p.Address, p.BloodGroup, p.EmergencyContact).
			Scan(&id.Active, &id.CreatedAt, &id.UpdatedAt)
	}
	if isUniqueViolation(err) {
		return ErrDuplicateKey
	}
	return err
}

func (r *repoPG) FindByID(ctx context.Context, kind Kind, id uuid.UUID) (*Identity, error) {
	return scanIdentity(kind, r.conn(ctx).QueryRow(ctx,
		`SELECT `+colsFor(kind)+` FROM `+kind.Table+` WHERE id = $1`, id))
}

func (r *repoPG) FindByNaturalKey(ctx context.Context, kind Kind, key string) (*Identity, error) {
	return scanIdentity(kind, r.conn(ctx).QueryRow(ctx,
		`SELECT `+colsFor(kind)+` FROM `+kind.Table+
			` WHERE `+kind.NaturalKeyColumn+` = $1 AND is_active = TRUE`, key))
}

func (r *repoPG) FindByNaturalKeyAnyState(ctx context.Context, kind Kind, key string) (*Identity, error) {
	return scanIdentity(kind, r.conn(ctx).QueryRow(ctx,
		`SELECT `+colsFor(kind)+` FROM `+kind.Table+
			` WHERE `+kind.NaturalKeyColumn+` = $1`, key))
}

func (r *repoPG) FindByEmail(ctx context.Context, kind Kind, email string) (*Identity, error) {
	return scanIdentity(kind, r.conn(ctx).QueryRow(ctx,
		`SELECT `+colsFor(kind)+` FROM `+kind.Table+
			` WHERE email = $1 AND is_active = TRUE`, email))
}

func (r *repoPG) ExistsByNaturalKey(ctx context.Context, kind Kind, key string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM `+kind.Table+` WHERE `+kind.NaturalKeyColumn+` = $1)`,
		key).Scan(&exists)
	return exists, err
}

// setClause builds "col = $n" assignments for the non-nil fields.
type setClause struct {
	parts []string
	args  []interface{}
}

func (s *setClause) add(column string, value interface{}) {
	s.args = append(s.args, value)
	s.parts = append(s.parts, fmt.Sprintf("%s = $%d", column, len(s.args)))
}

func (r *repoPG) applyUpdate(ctx context.Context, table string, id uuid.UUID, s *setClause) error {
	if len(s.parts) == 0 {
		return nil
	}
	s.args = append(s.args, id)
	query := fmt.Sprintf(`UPDATE %s SET %s, updated_at = NOW() WHERE id = $%d`,
		table, strings.Join(s.parts, ", "), len(s.args))
	tag, err := r.conn(ctx).Exec(ctx, query, s.args...)
	if isUniqueViolation(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) UpdateAdmin(ctx context.Context, id uuid.UUID, u AdminUpdate, passwordDigest *string) error {
	var s setClause
	if u.FullName != nil {
		s.add("full_name", *u.FullName)
	}
	if u.Email != nil {
		s.add("email", *u.Email)
	}
	if u.Phone != nil {
		s.add("phone", *u.Phone)
	}
	if passwordDigest != nil {
		s.add("password_digest", *passwordDigest)
	}
	return r.applyUpdate(ctx, KindAdmin.Table, id, &s)
}

func (r *repoPG) UpdateDoctor(ctx context.Context, id uuid.UUID, u DoctorUpdate, passwordDigest *string) error {
	var s setClause
	if u.FullName != nil {
		s.add("full_name", *u.FullName)
	}
	if u.Email != nil {
		s.add("email", *u.Email)
	}
	if u.Phone != nil {
		s.add("phone", *u.Phone)
	}
	if u.University != nil {
		s.add("university", *u.University)
	}
	if u.Specialization != nil {
		s.add("specialization", *u.Specialization)
	}
	if u.Qualification != nil {
		s.add("qualification", *u.Qualification)
	}
	if u.Address != nil {
		s.add("address", *u.Address)
	}
	if passwordDigest != nil {
		s.add("password_digest", *passwordDigest)
	}
	return r.applyUpdate(ctx, KindDoctor.Table, id, &s)
}

func (r *repoPG) UpdatePatient(ctx context.Context, id uuid.UUID, u PatientUpdate, passwordDigest *string) error {
	var s setClause
	if u.FullName != nil {
		s.add("full_name", *u.FullName)
	}
	if u.Email != nil {
		s.add("email", *u.Email)
	}
	if u.Phone != nil {
		s.add("phone", *u.Phone)
	}
	if u.Age != nil {
		s.add("age", *u.Age)
	}
	if u.Gender != nil {
		s.add("gender", *u.Gender)
	}
	if u.Address != nil {
		s.add("address", *u.Address)
	}
	if u.BloodGroup != nil {
		s.add("blood_group", *u.BloodGroup)
	}
	if u.EmergencyContact != nil {
		s.add("emergency_contact", *u.EmergencyContact)
	}
	if passwordDigest != nil {
		s.add("password_digest", *passwordDigest)
	}
	return r.applyUpdate(ctx, KindPatient.Table, id, &s)
}

func (r *repoPG) UpdatePasswordDigest(ctx context.Context, kind Kind, id uuid.UUID, digest string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE `+kind.Table+` SET password_digest = $2, updated_at = NOW() WHERE id = $1`,
		id, digest)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Deactivate(ctx context.Context, kind Kind, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE `+kind.Table+` SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) list(ctx context.Context, kind Kind, where string, args []interface{}, limit, offset int) ([]*Identity, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM `+kind.Table+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY full_name ASC LIMIT $%d OFFSET $%d`,
			colsFor(kind), kind.Table, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Identity
	for rows.Next() {
		id, err := scanIdentity(kind, rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, id)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListActive(ctx context.Context, kind Kind, limit, offset int) ([]*Identity, int, error) {
	return r.list(ctx, kind, ` WHERE is_active = TRUE`, nil, limit, offset)
}

func (r *repoPG) ListAll(ctx context.Context, kind Kind, limit, offset int) ([]*Identity, int, error) {
	return r.list(ctx, kind, ``, nil, limit, offset)
}

func (r *repoPG) ListDoctorsByUniversity(ctx context.Context, university string, limit, offset int) ([]*Identity, int, error) {
	return r.list(ctx, KindDoctor, ` WHERE university = $1 AND is_active = TRUE`,
		[]interface{}{university}, limit, offset)
}
