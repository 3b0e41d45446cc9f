package note

// Stored field names shared by the repository, the index descriptors and
// query plans.
const (
	FieldOwner       = "owner_id"
	FieldCollection  = "collection_id"
	FieldContent     = "content"
	FieldTags        = "tags"
	FieldContributor = "contributor"
	FieldCreatedAt   = "created_at"
	FieldEmbedding   = "embedding"

	// TagSeparator joins tags inside the stored tags field.
	TagSeparator = ","
)
