package metadata

// UserContext represents the Forest Admin user, set by auth middleware.
type UserContext struct {
	ID          string            `json:"id"`
	Email       string            `json:"email"`
	FirstName   string            `json:"first_name"`
	LastName    string            `json:"last_name"`
	Team        string            `json:"team"`
	RenderingID int64             `json:"rendering_id"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// FullName returns "First Last".
func (u *UserContext) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
