package models

// Principal is the resolved identity handed to every operation by the
// identity provider (via the bearer token).
type Principal struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// UserProfile is the display info the identity provider returns for a user.
type UserProfile struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}
