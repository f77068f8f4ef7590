package v1

import "time"

const (
	// BasePath is where the backup repository mounts its stable API.
	BasePath = "/api/stable"

	LoginPath  = "/auth/login"
	WhoAmIPath = "/auth/whoami"
	HealthPath = "/health"
)

// LoginRequest is the body of POST /api/stable/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginData struct {
	Token  string    `json:"token"`
	Expire time.Time `json:"expire"`
}

type LoginResponse struct {
	Status bool      `json:"status"`
	Data   LoginData `json:"data"`
}

type WhoAmIData struct {
	Email       string   `json:"email"`
	Permissions []string `json:"permissions"`
}

type WhoAmIResponse struct {
	Status bool       `json:"status"`
	Data   WhoAmIData `json:"data"`
}

// ErrorResponse is returned by every endpoint on failure.
type ErrorResponse struct {
	Status bool   `json:"status"`
	Error  string `json:"error"`
}
