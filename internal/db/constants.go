package db

// SQL query fragments used across multiple functions
const (
	usageRequestColumns = `provider, api_key_ref, model, origin, session_id, unix_ms,
		input_tokens, output_tokens, total_tokens,
		cache_creation_input_tokens, cache_read_input_tokens`

	msPerHour = int64(3_600_000)
	msPerDay  = 24 * msPerHour
)
