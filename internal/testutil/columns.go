package testutil

// DocumentCols must match the SELECT list of GetDocumentByID in queries.sql.
var DocumentCols = []string{
	"id", "index_id", "name", "description", "content", "content_key",
	"metadata", "index_status", "last_indexed_at",
}
