package auth

// Identity represents a normalized external authentication identity
// returned by an OAuth provider. It contains facts only, no decisions.
// It lives for one callback and is never persisted as-is.
type Identity struct {
	Provider  string         // e.g. "google", "keycloak"
	UID       string         // provider-scoped stable user identifier
	Email     string         // join key against local users
	FirstName string         // optional
	LastName  string         // optional
	Token     string         // bearer token used to fetch the profile
	ExtraData map[string]any // raw provider profile payload
}

// Picture returns the profile picture URL from the raw payload, if any.
func (i *Identity) Picture() string {
	if i == nil || i.ExtraData == nil {
		return ""
	}
	s, _ := i.ExtraData["picture"].(string)
	return s
}
