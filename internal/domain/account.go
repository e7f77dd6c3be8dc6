package domain

type Role string

const (
	RoleGuest Role = "guest"
	RoleAdmin Role = "admin"
)

// Account is the public view of a user. It never carries a password.
type Account struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Role      Role   `json:"role"`
}

func (a Account) IsAdmin() bool { return a.Role == RoleAdmin }

// Credential is the stored form of an account: the account plus its bcrypt hash.
// RemoteID is the id the sheet endpoint knows the account by; zero when the
// account only exists locally. Account.ID is always the local id.
type Credential struct {
	Account
	PasswordHash string `json:"passwordHash"`
	RemoteID     int64  `json:"remoteId,omitempty"`
}

type Registration struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"omitempty,max=32"`
	Password  string `json:"password" validate:"required,min=6"`
}
