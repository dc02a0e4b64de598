package dynamo

// DynamoDB attribute and index names shared across repos.
const (
	fieldUserID    = "user_id"
	fieldEmail     = "email"
	fieldToken     = "token"
	fieldRelatesTo = "relates_to"
	fieldExpiresAt = "expires_at"
	fieldUpdatedAt = "updated_at"

	indexEmail     = "email-index"
	indexUserID    = "user_id-index"
	indexRelatesTo = "relates_to-index"

	// emailLockPrefix marks the items that reserve an email address in the users table.
	emailLockPrefix = "email#"
)
