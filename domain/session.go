package domain

// Session is the minted token pair returned by the exchange and refresh
// endpoints. Sessions are stateless: validity is determined purely by
// signature and expiry, nothing is persisted server-side.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ProfileID    string `json:"profile_id"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// ProfileData carries optional profile hints supplied by the caller during
// token exchange, used to populate a freshly created profile.
type ProfileData struct {
	FullName  string `json:"fullName,omitempty"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}
