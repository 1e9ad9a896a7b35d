package domain

// Role values stored on a user record and carried in token claims.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User represents an account in the identity store
type User struct {
	ID           int64  // Serial primary key
	LastName     string // "nom" in the API payloads
	FirstName    string // "prenom" in the API payloads
	Email        string // Unique email address
	PasswordHash string // Bcrypt hash (never returned in API)
	Role         string // RoleAdmin or RoleUser
}

// UserRepository defines data access for users
type UserRepository interface {
	Create(user *User) error
	GetByID(id int64) (*User, error)
	GetByEmail(email string) (*User, error)
	List() ([]*User, error)
	ListByRole(role string) ([]*User, error)
	Update(user *User) error
	Delete(id int64) error
}
