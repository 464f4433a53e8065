package types

import "time"

// Role is the platform role a user signs up with.
type Role string

const (
	RoleStudent Role = "student"
	RoleAlumni  Role = "alumni"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleAlumni, RoleAdmin:
		return true
	default:
		return false
	}
}

// Display returns the human-readable label of the role.
func (r Role) Display() string {
	switch r {
	case RoleStudent:
		return "Student"
	case RoleAlumni:
		return "Alumni"
	case RoleAdmin:
		return "Admin"
	default:
		return string(r)
	}
}

// User represents an account in the system.
// It contains identity, role, profile, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's email address. It is unique across users.
	Email string `json:"email" db:"email"`

	// FirstName and LastName are optional display names.
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`

	// Role indicates whether the user is a student, an alumnus or an admin.
	Role Role `json:"role" db:"role"`

	// GraduationYear is the year the user graduated or expects to graduate.
	GraduationYear *int `json:"graduation_year" db:"graduation_year"`

	// Department is the academic department of the user.
	Department *string `json:"department" db:"department"`

	// Bio is a free-form profile description.
	Bio *string `json:"bio" db:"bio"`

	// AvatarKey is the object storage key of the uploaded avatar, if any.
	AvatarKey *string `json:"-" db:"avatar_key"`

	// AvatarContentType is the MIME type recorded when the avatar was uploaded.
	AvatarContentType *string `json:"-" db:"avatar_content_type"`

	// IsStaff grants moderation privileges independent of Role.
	IsStaff bool `json:"is_staff" db:"is_staff"`

	// IsActive is false for disabled accounts, which cannot log in.
	IsActive bool `json:"-" db:"is_active"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// DateJoined is the timestamp when the user account was created.
	DateJoined time.Time `json:"date_joined" db:"date_joined"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"-" db:"updated_at"`
}

// UserView is the public representation of a user returned by the API.
type UserView struct {
	ID             int       `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Role           Role      `json:"role"`
	RoleDisplay    string    `json:"role_display"`
	GraduationYear *int      `json:"graduation_year"`
	Department     *string   `json:"department"`
	Bio            *string   `json:"bio"`
	IsStaff        bool      `json:"is_staff"`
	HasAvatar      bool      `json:"has_avatar"`
	DateJoined     time.Time `json:"date_joined"`
}

// View converts the user into its API representation.
func (u User) View() UserView {
	return UserView{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Role:           u.Role,
		RoleDisplay:    u.Role.Display(),
		GraduationYear: u.GraduationYear,
		Department:     u.Department,
		Bio:            u.Bio,
		IsStaff:        u.IsStaff,
		HasAvatar:      u.AvatarKey != nil && *u.AvatarKey != "",
		DateJoined:     u.DateJoined,
	}
}

// UserFilter narrows a user listing.
type UserFilter struct {
	// Role restricts results to a single role when set.
	Role Role

	// Search is matched case-insensitively against username, email and names.
	Search string
}

// Token is the single active API credential of a user.
type Token struct {
	// Key is the random identifier stored server-side. Deleting it revokes the token.
	Key string `json:"-" db:"key"`

	// UserID identifies the owner of the token.
	UserID int `json:"-" db:"user_id"`

	// CreatedAt is the issue time of the token.
	CreatedAt time.Time `json:"-" db:"created_at"`
}
