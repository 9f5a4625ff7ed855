package labs

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebridge/carebridge/internal/platform/db"
)

type documentRepoPG struct{ pool *pgxpool.Pool }

func NewDocumentRepoPG(pool *pgxpool.Pool) DocumentRepository { return &documentRepoPG{pool: pool} }

func (r *documentRepoPG) conn(ctx context.Context) db.Queryable {
	return db.ConnFromContext(ctx, r.pool)
}

const docCols = `id, lab_id, image_url, object_key, analysis, document_type, created_at`

func (r *documentRepoPG) scanDoc(row pgx.Row) (*LabDocument, error) {
	var d LabDocument
	err := row.Scan(&d.ID, &d.LabID, &d.ImageURL, &d.ObjectKey, &d.Analysis, &d.DocumentType, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *documentRepoPG) Create(ctx context.Context, d *LabDocument) error {
	d.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO lab_documents (id, lab_id, image_url, object_key, analysis, document_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		d.ID, d.LabID, d.ImageURL, d.ObjectKey, d.Analysis, d.DocumentType).Scan(&d.CreatedAt)
}

func (r *documentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*LabDocument, error) {
	return r.scanDoc(r.conn(ctx).QueryRow(ctx, `SELECT `+docCols+` FROM lab_documents WHERE id = $1`, id))
}

func (r *documentRepoPG) ListByLab(ctx context.Context, labID uuid.UUID, limit, offset int) ([]*LabDocument, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM lab_documents WHERE lab_id = $1`, labID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+docCols+` FROM lab_documents
		WHERE lab_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, labID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*LabDocument
	for rows.Next() {
		d, err := r.scanDoc(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}
