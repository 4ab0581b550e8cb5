package scheduling

import (
	"context"
	"errors"
	"fmt"

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

// NewRepoPG creates the Postgres-backed appointment repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// Every read joins the account tables so listings carry display fields
// without a second round trip.
const apptSelect = `
	SELECT a.id, a.patient_id, a.doctor_id,
		a.appointment_date::text, a.appointment_time::text,
		a.reason, a.status, a.notes, a.created_at, a.updated_at,
		p.full_name, p.phone, p.age, p.gender,
		d.full_name, d.university, d.specialization
	FROM appointments a
	JOIN patients p ON a.patient_id = p.id
	JOIN doctors d ON a.doctor_id = d.id`

const apptCount = `
	SELECT COUNT(*)
	FROM appointments a
	JOIN patients p ON a.patient_id = p.id
	JOIN doctors d ON a.doctor_id = d.id`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID,
		&a.Date, &a.Time,
		&a.Reason, &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
		&a.PatientName, &a.PatientPhone, &a.PatientAge, &a.PatientGender,
		&a.DoctorName, &a.DoctorUniversity, &a.DoctorSpecialization)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.Status = StatusScheduled
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, appointment_date, appointment_time, reason, status)
		VALUES ($1,$2,$3,$4::date,$5::time,$6,$7)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.Date, a.Time, a.Reason, a.Status).
		Scan(&a.CreatedAt, &a.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrSlotTaken
	}
	return err
}

func (r *repoPG) FindByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, apptSelect+` WHERE a.id = $1`, id))
}

func (r *repoPG) IsSlotFree(ctx context.Context, doctorID uuid.UUID, date, timeOfDay string) (bool, error) {
	var taken bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
				AND appointment_date = $2::date
				AND appointment_time = $3::time
				AND status <> 'Cancelled')`,
		doctorID, date, timeOfDay).Scan(&taken)
	return !taken, err
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, notes *string) error {
	var tag pgconn.CommandTag
	var err error
	if notes != nil {
		tag, err = r.conn(ctx).Exec(ctx, `
			UPDATE appointments SET status = $2, notes = $3, updated_at = NOW() WHERE id = $1`,
			id, status, *notes)
	} else {
		tag, err = r.conn(ctx).Exec(ctx, `
			UPDATE appointments SET status = $2, updated_at = NOW() WHERE id = $1`,
			id, status)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) listQuery(ctx context.Context, where, order string, args []interface{}, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, apptCount+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`%s%s %s LIMIT $%d OFFSET $%d`,
		apptSelect, where, order, len(args)-1, len(args))
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

const orderNewestFirst = `ORDER BY a.appointment_date DESC, a.appointment_time DESC`

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return r.listQuery(ctx, ` WHERE a.patient_id = $1`, orderNewestFirst,
		[]interface{}{patientID}, limit, offset)
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, f DoctorFilter, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE a.doctor_id = $1`
	args := []interface{}{doctorID}
	if f.Date != "" {
		args = append(args, f.Date)
		where += fmt.Sprintf(` AND a.appointment_date = $%d::date`, len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND a.status = $%d`, len(args))
	}
	return r.listQuery(ctx, where, orderNewestFirst, args, limit, offset)
}

func (r *repoPG) ListUpcomingByDoctor(ctx context.Context, doctorID uuid.UUID, fromDate string, limit, offset int) ([]*Appointment, int, error) {
	return r.listQuery(ctx,
		` WHERE a.doctor_id = $1 AND a.appointment_date >= $2::date AND a.status = 'Scheduled'`,
		`ORDER BY a.appointment_date ASC, a.appointment_time ASC`,
		[]interface{}{doctorID, fromDate}, limit, offset)
}

func (r *repoPG) ListAll(ctx context.Context, limit, offset int) ([]*Appointment, int, error) {
	return r.listQuery(ctx, ``, orderNewestFirst, nil, limit, offset)
}
