package postgresql

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getDocumentByID = `-- name: GetDocumentByID :one
SELECT id, index_id, name, description, content, content_key, metadata, index_status, last_indexed_at
FROM documents
WHERE id = $1 AND deleted_at IS NULL
`

func (q *Queries) GetDocumentByID(ctx context.Context, id pgtype.UUID) (Document, error) {
	row := q.db.QueryRow(ctx, getDocumentByID, id)
	var i Document
	err := row.Scan(
		&i.ID,
		&i.IndexID,
		&i.Name,
		&i.Description,
		&i.Content,
		&i.ContentKey,
		&i.Metadata,
		&i.IndexStatus,
		&i.LastIndexedAt,
	)
	return i, err
}

const markDocumentIndexed = `-- name: MarkDocumentIndexed :exec
UPDATE documents
SET index_status = 'INDEXED', index_task_id = $2, index_error = NULL, last_indexed_at = now()
WHERE id = $1
`

type MarkDocumentIndexedParams struct {
	ID     pgtype.UUID
	TaskID pgtype.Text
}

func (q *Queries) MarkDocumentIndexed(ctx context.Context, arg MarkDocumentIndexedParams) error {
	_, err := q.db.Exec(ctx, markDocumentIndexed, arg.ID, arg.TaskID)
	return err
}

const markDocumentIndexFailed = `-- name: MarkDocumentIndexFailed :exec
UPDATE documents
SET index_status = 'FAILED', index_task_id = $2, index_error = $3
WHERE id = $1
`

type MarkDocumentIndexFailedParams struct {
	ID     pgtype.UUID
	TaskID pgtype.Text
	Error  pgtype.Text
}

func (q *Queries) MarkDocumentIndexFailed(ctx context.Context, arg MarkDocumentIndexFailedParams) error {
	_, err := q.db.Exec(ctx, markDocumentIndexFailed, arg.ID, arg.TaskID, arg.Error)
	return err
}

const markDocumentDeleted = `-- name: MarkDocumentDeleted :exec
UPDATE documents
SET index_status = 'DELETED', index_task_id = $2, index_error = NULL
WHERE id = $1
`

type MarkDocumentDeletedParams struct {
	ID     pgtype.UUID
	TaskID pgtype.Text
}

func (q *Queries) MarkDocumentDeleted(ctx context.Context, arg MarkDocumentDeletedParams) error {
	_, err := q.db.Exec(ctx, markDocumentDeleted, arg.ID, arg.TaskID)
	return err
}
