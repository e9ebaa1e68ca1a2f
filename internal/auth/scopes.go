package auth

const (
	ScopeOpenID         = "openid"
	ScopeProfile        = "profile"
	ScopeEmail          = "email"
	ScopeTimelinesRead  = "timelines:read"
	ScopeTimelinesWrite = "timelines:write"
)

// AllScopes defines the full set of scopes requested at login and by the Swagger UI
var AllScopes = []string{
	ScopeOpenID,
	ScopeProfile,
	ScopeEmail,
	ScopeTimelinesRead,
	ScopeTimelinesWrite,
}
