package dto

type RegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`

	// student
	Major     string `json:"major,omitempty"`
	Interests string `json:"interests,omitempty"`
	// supervisor
	Expertise string `json:"expertise,omitempty"`
	// both
	Faculty string `json:"faculty,omitempty"`
}

type UserLogin struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type AccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// AuthUser is the identity decoded from a verified token.
type AuthUser struct {
	UserID    uint   `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Type      string `json:"type"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

type DeleteAccountRequest struct {
	Password string `json:"password"`
}
