package app

import (
	"context"
	"net/mail"
	"strings"

	"ctf-quiz-service/internal/domain"
)

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserInput creates or updates an account. Password is optional on update.
type UserInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token    string      `json:"token"`
	Role     domain.Role `json:"role"`
	Username string      `json:"username"`
}

// UserService handles registration, login and admin account management.
type UserService struct {
	users  UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
	board  *LeaderboardService
}

func NewUserService(users UserRepository, hasher PasswordHasher, tokens TokenIssuer, board *LeaderboardService) *UserService {
	return &UserService{users: users, hasher: hasher, tokens: tokens, board: board}
}

// Register creates a participant account. Self-registration never grants ADMIN.
func (s *UserService) Register(ctx context.Context, in UserInput) (domain.User, error) {
	in.Role = string(domain.RoleUser)
	return s.create(ctx, in)
}

// Login verifies the password and issues a bearer token. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	email := normalizeEmail(creds.Email)
	if email == "" || creds.Password == "" {
		return LoginResult{}, domain.Invalid("email and password are required")
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return LoginResult{}, domain.ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if !s.hasher.Compare(user.PasswordHash, creds.Password) {
		return LoginResult{}, domain.ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, Role: user.Role, Username: user.Username}, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id int64) (domain.User, error) {
	return s.users.GetUser(ctx, id)
}

func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

// Create is the admin path; it may grant ADMIN.
func (s *UserService) Create(ctx context.Context, in UserInput) (domain.User, error) {
	return s.create(ctx, in)
}

// Update rewrites username, email and role; a blank password keeps the current one.
func (s *UserService) Update(ctx context.Context, id int64, in UserInput) (domain.User, error) {
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	if in.Username = strings.TrimSpace(in.Username); in.Username != "" {
		user.Username = in.Username
	}
	if email := normalizeEmail(in.Email); email != "" {
		if err := validateEmail(email); err != nil {
			return domain.User{}, err
		}
		user.Email = email
	}
	if strings.TrimSpace(in.Role) != "" {
		role, err := domain.ParseRole(in.Role)
		if err != nil {
			return domain.User{}, err
		}
		user.Role = role
	}
	user.PasswordHash = ""
	if in.Password != "" {
		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return domain.User{}, err
		}
		user.PasswordHash = hash
	}
	updated, err := s.users.UpdateUser(ctx, user)
	if err != nil {
		return domain.User{}, err
	}
	// role changes move users on or off the board
	_ = s.board.Refresh(ctx)
	return updated, nil
}

// Delete removes an account with its play history. Admins cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, callerID, id int64) error {
	if callerID == id {
		return domain.ErrSelfDelete
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	_ = s.board.Refresh(ctx)
	return nil
}

// EnsureAdmin fails unless the stored account currently holds ADMIN.
func (s *UserService) EnsureAdmin(ctx context.Context, id int64) error {
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return domain.ErrInvalidToken
		}
		return err
	}
	if !user.IsAdmin() {
		return domain.ErrAdminRequired
	}
	return nil
}

func (s *UserService) create(ctx context.Context, in UserInput) (domain.User, error) {
	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)
	if username == "" || email == "" || in.Password == "" {
		return domain.User{}, domain.Invalid("username, email and password are required")
	}
	if err := validateEmail(email); err != nil {
		return domain.User{}, err
	}
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return domain.User{}, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, err
	}
	return s.users.CreateUser(ctx, domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return domain.Invalid("invalid email %q", email)
	}
	return nil
}
