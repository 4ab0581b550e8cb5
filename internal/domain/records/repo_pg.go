package records

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

// NewRepoPG creates the Postgres-backed medical record repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const recordSelect = `
	SELECT mr.id, mr.patient_id, mr.doctor_id, mr.appointment_id,
		mr.visit_date::text, mr.diagnosis, mr.symptoms, mr.prescription,
		mr.tests_recommended, mr.follow_up_date::text, mr.notes,
		mr.created_at, mr.updated_at,
		p.full_name, p.age, p.gender,
		d.full_name, d.specialization
	FROM medical_records mr
	JOIN patients p ON mr.patient_id = p.id
	JOIN doctors d ON mr.doctor_id = d.id`

const recordCount = `
	SELECT COUNT(*)
	FROM medical_records mr
	JOIN patients p ON mr.patient_id = p.id
	JOIN doctors d ON mr.doctor_id = d.id`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.DoctorID, &rec.AppointmentID,
		&rec.VisitDate, &rec.Diagnosis, &rec.Symptoms, &rec.Prescription,
		&rec.TestsRecommended, &rec.FollowUpDate, &rec.Notes,
		&rec.CreatedAt, &rec.UpdatedAt,
		&rec.PatientName, &rec.PatientAge, &rec.PatientGender,
		&rec.DoctorName, &rec.DoctorSpecialization)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_records (id, patient_id, doctor_id, appointment_id, visit_date,
			diagnosis, symptoms, prescription, tests_recommended, follow_up_date, notes)
		VALUES ($1,$2,$3,$4,$5::date,$6,$7,$8,$9,$10::date,$11)
		RETURNING created_at, updated_at`,
		rec.ID, rec.PatientID, rec.DoctorID, rec.AppointmentID, rec.VisitDate,
		rec.Diagnosis, rec.Symptoms, rec.Prescription, rec.TestsRecommended,
		rec.FollowUpDate, rec.Notes).
		Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

func (r *repoPG) FindByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx, recordSelect+` WHERE mr.id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, id uuid.UUID, u Update) error {
	var parts []string
	var args []interface{}
	add := func(column string, value interface{}, cast string) {
		args = append(args, value)
		parts = append(parts, fmt.Sprintf("%s = $%d%s", column, len(args), cast))
	}
	if u.Diagnosis != nil {
		add("diagnosis", *u.Diagnosis, "")
	}
	if u.Symptoms != nil {
		add("symptoms", *u.Symptoms, "")
	}
	if u.Prescription != nil {
		add("prescription", *u.Prescription, "")
	}
	if u.TestsRecommended != nil {
		add("tests_recommended", *u.TestsRecommended, "")
	}
	if u.FollowUpDate != nil {
		add("follow_up_date", *u.FollowUpDate, "::date")
	}
	if u.Notes != nil {
		add("notes", *u.Notes, "")
	}
	if len(parts) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE medical_records SET %s, updated_at = NOW() WHERE id = $%d`,
		strings.Join(parts, ", "), len(args))
	tag, err := r.conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, recordCount+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`%s%s ORDER BY mr.visit_date DESC, mr.created_at DESC LIMIT $%d OFFSET $%d`,
		recordSelect, where, len(args)-1, len(args))
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	return r.list(ctx, ` WHERE mr.patient_id = $1`, []interface{}{patientID}, limit, offset)
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	return r.list(ctx, ` WHERE mr.doctor_id = $1`, []interface{}{doctorID}, limit, offset)
}

func (r *repoPG) ListPatientHistory(ctx context.Context, patientID, doctorID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	return r.list(ctx, ` WHERE mr.patient_id = $1 AND mr.doctor_id = $2`,
		[]interface{}{patientID, doctorID}, limit, offset)
}
