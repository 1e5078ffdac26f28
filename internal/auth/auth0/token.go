package auth0

// TokenSet is the token endpoint response this client keeps.
// The values are opaque; nothing here parses or validates them.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// ExpiresIn is the lifetime in seconds reported at issue time.
	ExpiresIn int64  `json:"expires_in"`
	TokenType string `json:"token_type"`
	Scope     string `json:"scope"`
}

// StoredTokenRecord is the persisted form of a TokenSet.
type StoredTokenRecord struct {
	TokenSet
	// SavedMarker is a random value regenerated on every save.
	SavedMarker string `json:"saved_marker"`
}
