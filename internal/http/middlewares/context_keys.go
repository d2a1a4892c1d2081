package middlewares

// Gin context keys shared by middlewares and handlers.
const (
	CtxRequestID = "request_id"
	CtxUserID    = "auth.userID"
	CtxEmail     = "auth.email"
	CtxRoleFlags = "auth.roleFlags"
	CtxJobID     = "job_id"
	CtxTaskID    = "task_id"
)
