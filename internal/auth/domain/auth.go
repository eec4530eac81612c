package domain

// Authentication is the verified identity extracted from an access token.
// It lives for the duration of one request.
type Authentication struct {
	UserID           string
	SessionID        string
	RefreshTokenHash string
	Admin            bool
}

// Tokens is the result of issuing a fresh token pair for a session. The
// caller persists RefreshTokenHash into the session row within the same
// transaction as any other session mutation.
type Tokens struct {
	AccessToken      string
	RefreshToken     string
	RefreshTokenHash string
}

// LoginResult is returned from login and refresh flows.
type LoginResult struct {
	Session Session
	Tokens  Tokens
}
