package domain

import "time"

// OAuthToken holds the credentials issued by a provider handshake.
// Secret is only set by OAuth1 providers, RefreshToken only by OAuth2 ones.
type OAuthToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Secret       string `json:"secret,omitempty"`
}

// OAuthData links a user to one external provider account.
type OAuthData struct {
	ID           string     `json:"id"`
	Token        OAuthToken `json:"token"`
	NeedsRefresh bool       `json:"needs_refresh"`
}

// UserInfo holds the user's profile. Fields are pointers so that an unset
// field can be told apart from an empty one: provider-supplied values only
// ever fill unset fields.
type UserInfo struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Email     *string `json:"email,omitempty"`
}

// User is a local identity aggregating linked cloud photo accounts.
// Accounts is keyed by provider code; RequestSecrets holds pending OAuth1
// request secrets awaiting their verifier callback.
type User struct {
	ID             string               `json:"id" db:"id"`
	Accounts       map[string]OAuthData `json:"accounts"`
	RequestSecrets map[string]string    `json:"request_secrets,omitempty"`
	Info           UserInfo             `json:"info"`
	Version        int64                `json:"-" db:"version"`
	CreatedAt      time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at" db:"updated_at"`
}

// NewUser returns a user with no linked accounts yet.
func NewUser(id string) *User {
	return &User{
		ID:             id,
		Accounts:       map[string]OAuthData{},
		RequestSecrets: map[string]string{},
	}
}

// Merge folds other into u: every linked account is copied over (a provider
// collision overwrites, the caller is expected to have ruled that out) and
// the profile is replaced wholesale. The caller must remove other from the
// store afterwards; u is only mutated in memory here.
func (u *User) Merge(other *User) {
	if u.Accounts == nil {
		u.Accounts = map[string]OAuthData{}
	}
	for code, acct := range other.Accounts {
		u.Accounts[code] = acct
	}
	u.Info = other.Info
}

// Clone returns a deep copy, so stores can hand out users without aliasing
// their internal state.
func (u *User) Clone() *User {
	c := *u
	c.Accounts = make(map[string]OAuthData, len(u.Accounts))
	for code, acct := range u.Accounts {
		c.Accounts[code] = acct
	}
	c.RequestSecrets = make(map[string]string, len(u.RequestSecrets))
	for code, secret := range u.RequestSecrets {
		c.RequestSecrets[code] = secret
	}
	c.Info = u.Info.clone()
	return &c
}

func (i UserInfo) clone() UserInfo {
	return UserInfo{
		FirstName: clonePtr(i.FirstName),
		LastName:  clonePtr(i.LastName),
		Email:     clonePtr(i.Email),
	}
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// DisplayName assembles a human-readable name, falling back to "User" when
// the profile has no name at all.
func (u *User) DisplayName() string {
	first, last := u.Info.FirstName, u.Info.LastName
	switch {
	case first != nil && last != nil:
		return *first + " " + *last
	case first != nil:
		return *first
	case last != nil:
		return *last
	default:
		return "User"
	}
}
