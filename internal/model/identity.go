package model

// Identity is who the client is acting as.
type Identity struct {
	ID            *string `json:"id,omitempty"`
	Email         *string `json:"email,omitempty"`
	Name          *string `json:"name,omitempty"`
	Authenticated bool    `json:"isAuthenticated"`
}

// Anonymous returns the signed-out identity.
func Anonymous() Identity {
	return Identity{}
}

// Consistent reports whether the identity respects authenticated=false
// implying no id or email.
func (i Identity) Consistent() bool {
	if i.Authenticated {
		return i.ID != nil && *i.ID != ""
	}
	return i.ID == nil && i.Email == nil
}

// Normalize drops fields a signed-out identity must not carry.
func (i Identity) Normalize() Identity {
	if !i.Authenticated {
		return Anonymous()
	}
	return i
}

// OwnerID returns the owner id to tag remote writes with, or nil.
func (i Identity) OwnerID() *string {
	if !i.Authenticated || i.ID == nil {
		return nil
	}
	id := *i.ID
	return &id
}
