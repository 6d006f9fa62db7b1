package middlewares

// gin context keys shared by middlewares and handlers.
const (
	CtxRequestID = "request_id"
	CtxJobID     = "job_id"
	CtxDraftID   = "draft_id"

	// set by RequireAuth
	CtxUsername = "auth.username"
	CtxRole     = "auth.role"
	CtxJTI      = "auth.jti"
)
