package reports

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebridge/carebridge/internal/platform/db"
)

// =========== Report Repository ===========

type reportRepoPG struct{ pool *pgxpool.Pool }

func NewReportRepoPG(pool *pgxpool.Pool) ReportRepository { return &reportRepoPG{pool: pool} }

func (r *reportRepoPG) conn(ctx context.Context) db.Queryable {
	return db.ConnFromContext(ctx, r.pool)
}

const reportCols = `id, patient_id, doctor_id, report_content, chat_history, status, created_at, updated_at`

func (r *reportRepoPG) scanReport(row pgx.Row) (*SymptomReport, error) {
	var rep SymptomReport
	err := row.Scan(&rep.ID, &rep.PatientID, &rep.DoctorID, &rep.ReportContent,
		&rep.ChatHistory, &rep.Status, &rep.CreatedAt, &rep.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *reportRepoPG) Create(ctx context.Context, rep *SymptomReport) error {
	rep.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO symptom_reports (id, patient_id, report_content, chat_history, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		rep.ID, rep.PatientID, rep.ReportContent, rep.ChatHistory, rep.Status).
		Scan(&rep.CreatedAt, &rep.UpdatedAt)
}

func (r *reportRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*SymptomReport, error) {
	rep, err := r.scanReport(r.conn(ctx).QueryRow(ctx,
		`SELECT `+reportCols+` FROM symptom_reports WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rep, err
}

func (r *reportRepoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*SymptomReport, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM symptom_reports WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM symptom_reports WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		reportCols, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*SymptomReport
	for rows.Next() {
		rep, err := r.scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rep)
	}
	return items, total, rows.Err()
}

func (r *reportRepoPG) ListPending(ctx context.Context, limit, offset int) ([]*SymptomReport, int, error) {
	return r.list(ctx, `status = $1 AND doctor_id IS NULL`, []interface{}{StatusPendingReview}, limit, offset)
}

func (r *reportRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, status string, limit, offset int) ([]*SymptomReport, int, error) {
	return r.list(ctx, `doctor_id = $1 AND status = $2`, []interface{}{doctorID, status}, limit, offset)
}

func (r *reportRepoPG) Review(ctx context.Context, id, doctorID uuid.UUID, status string) (*SymptomReport, error) {
	rep, err := r.scanReport(r.conn(ctx).QueryRow(ctx, `
		UPDATE symptom_reports
		SET status = $3, doctor_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending_review' AND doctor_id IS NULL
		RETURNING `+reportCols, id, doctorID, status))
	if err == nil {
		return rep, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var exists bool
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM symptom_reports WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrAlreadyReviewed
}

// =========== Link Repository ===========

type linkRepoPG struct{ pool *pgxpool.Pool }

func NewLinkRepoPG(pool *pgxpool.Pool) LinkRepository { return &linkRepoPG{pool: pool} }

func (r *linkRepoPG) conn(ctx context.Context) db.Queryable {
	return db.ConnFromContext(ctx, r.pool)
}

func (r *linkRepoPG) Activate(ctx context.Context, doctorID, patientID uuid.UUID) (*DoctorPatientLink, error) {
	var l DoctorPatientLink
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor_patients (id, doctor_id, patient_id, status)
		VALUES ($1, $2, $3, 'active')
		ON CONFLICT (doctor_id, patient_id) DO UPDATE SET status = 'active'
		RETURNING id, doctor_id, patient_id, status, created_at`,
		uuid.New(), doctorID, patientID).
		Scan(&l.ID, &l.DoctorID, &l.PatientID, &l.Status, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *linkRepoPG) IsActive(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	var active bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM doctor_patients
			WHERE doctor_id = $1 AND patient_id = $2 AND status = 'active'
		)`, doctorID, patientID).Scan(&active)
	return active, err
}

func (r *linkRepoPG) contacts(ctx context.Context, joinCol, whereCol string, id uuid.UUID) ([]*CareContact, error) {
	query := fmt.Sprintf(`
		SELECT dp.id, p.id, p.full_name, p.email, p.specialty, dp.created_at
		FROM doctor_patients dp
		JOIN profiles p ON p.id = dp.%s
		WHERE dp.%s = $1 AND dp.status = 'active'
		ORDER BY p.full_name`, joinCol, whereCol)
	rows, err := r.conn(ctx).Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*CareContact
	for rows.Next() {
		var c CareContact
		if err := rows.Scan(&c.LinkID, &c.ProfileID, &c.FullName, &c.Email, &c.Specialty, &c.LinkedAt); err != nil {
			return nil, err
		}
		items = append(items, &c)
	}
	return items, rows.Err()
}

func (r *linkRepoPG) ListPatients(ctx context.Context, doctorID uuid.UUID) ([]*CareContact, error) {
	return r.contacts(ctx, "patient_id", "doctor_id", doctorID)
}

func (r *linkRepoPG) ListDoctors(ctx context.Context, patientID uuid.UUID) ([]*CareContact, error) {
	return r.contacts(ctx, "doctor_id", "patient_id", patientID)
}
