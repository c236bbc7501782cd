package ctxkey

const (
	// AccountId is the verified account identifier for the current request.
	// Set in: middleware.TokenAuth after successful bearer introspection.
	// Read by controllers for ledger operations and ownership checks.
	AccountId = "account_id"

	// RequestModel is the model name as requested by the client (e.g. "gpt-4o").
	// Set in: relay controller when the body is first parsed.
	// Read when logging upstream failures.
	// Invariant: never mutated; billing uses the upstream response model instead.
	RequestModel = "request_model"

	// KeyRequestBody caches the raw request body so middleware and handlers
	// can both read it (gin drains the body on first read).
	KeyRequestBody = "key_request_body"
)
