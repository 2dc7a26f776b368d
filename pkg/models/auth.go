package models

// Role values for User.Role.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is the authenticated console operator as returned by the backend.
// Permissions is the resolved list, independent of which group granted it.
type User struct {
	ID              int              `json:"id"`
	UserID          string           `json:"userId"`
	Department      string           `json:"department"`
	Role            string           `json:"role"`
	IsActive        bool             `json:"isActive"`
	PasswordChanged bool             `json:"passwordChanged"`
	CreatedAt       string           `json:"createdAt"`
	UpdatedAt       string           `json:"updatedAt"`
	Groups          []int            `json:"groups"`
	Permissions     []UserPermission `json:"permissions"`
}

// IsAdmin returns true if the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
}

// LoginResponse carries the issued bearer token and the user it belongs to.
type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// ChangePasswordRequest is the body of POST /auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePasswordResponse returns the refreshed user after a password change.
type ChangePasswordResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
}

// CreateUserRequest is the body of POST /users.
type CreateUserRequest struct {
	UserID     string `json:"userId"`
	Password   string `json:"password"`
	Department string `json:"department"`
	Role       string `json:"role"`
	Groups     []int  `json:"groups"`
}

// UpdateUserRequest is the body of PUT /users/{id}. Nil fields are left unchanged.
type UpdateUserRequest struct {
	Department *string `json:"department,omitempty"`
	Role       *string `json:"role,omitempty"`
	IsActive   *bool   `json:"isActive,omitempty"`
	Groups     []int   `json:"groups,omitempty"`
}

// Message is the generic {"message": ...} acknowledgement body.
type Message struct {
	Message string `json:"message"`
}
