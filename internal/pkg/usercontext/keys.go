package usercontext

// Locals keys shared by middlewares and controllers
const (
	KeyUserContext = "USER_CONTEXT"
	KeyUserID      = "user_id"

	// HeaderUserID carries the caller id set by the upstream auth proxy.
	HeaderUserID = "X-User-ID"
)
