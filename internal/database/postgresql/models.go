package postgresql

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type IndexStatus string

const (
	IndexStatusPENDING IndexStatus = "PENDING"
	IndexStatusINDEXED IndexStatus = "INDEXED"
	IndexStatusFAILED  IndexStatus = "FAILED"
	IndexStatusDELETED IndexStatus = "DELETED"
)

type Document struct {
	ID            pgtype.UUID
	IndexID       string
	Name          string
	Description   pgtype.Text
	Content       pgtype.Text
	ContentKey    pgtype.Text
	Metadata      []byte
	IndexStatus   IndexStatus
	LastIndexedAt pgtype.Timestamptz
}
