package models

// Credentials holds the JWT access/refresh pair and the identity it was
// issued for. The refresh token is encrypted before it reaches disk; both
// tokens are opaque to this client.
type Credentials struct {
	AccessToken  string `db:"access_token" json:"access_token"`
	RefreshToken string `db:"refresh_token" json:"refresh_token"`
	UserID       int64  `db:"user_id" json:"user_id"`
	Username     string `db:"username" json:"username"`
}

// TableName returns the table name for Credentials.
func (Credentials) TableName() string {
	return "credentials"
}

// Valid reports whether a usable token pair is present.
func (c *Credentials) Valid() bool {
	return c != nil && c.AccessToken != "" && c.RefreshToken != ""
}
