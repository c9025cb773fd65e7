package postgresql

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type Querier interface {
	GetDocumentByID(ctx context.Context, id pgtype.UUID) (Document, error)
	MarkDocumentIndexed(ctx context.Context, arg MarkDocumentIndexedParams) error
	MarkDocumentIndexFailed(ctx context.Context, arg MarkDocumentIndexFailedParams) error
	MarkDocumentDeleted(ctx context.Context, arg MarkDocumentDeletedParams) error
}

var _ Querier = (*Queries)(nil)
