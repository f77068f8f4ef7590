// Package handlers implements the authentication endpoints of the backup
// repository for the in-process server.
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                     HTTP Request (Gin)                          │
//	└─────────────────────────────────────────────────────────────────┘
//	                              │
//	                              ▼
//	┌─────────────────────────────────────────────────────────────────┐
//	│                      Handler (this package)                     │
//	│  - Request validation                                           │
//	│  - Error mapping to HTTP status codes                           │
//	└─────────────────────────────────────────────────────────────────┘
//	                              │
//	                              ▼
//	┌─────────────────────────────────────────────────────────────────┐
//	│                      services.Accounts                          │
//	└─────────────────────────────────────────────────────────────────┘
//
// # Endpoints
//
//	┌────────┬───────────────────────────┬──────────────────────────────┐
//	│ Method │ Path                      │ Response                     │
//	├────────┼───────────────────────────┼──────────────────────────────┤
//	│ GET    │ /api/stable/health        │ {"status": true}             │
//	│ POST   │ /api/stable/auth/login    │ v1.LoginResponse             │
//	│ GET    │ /api/stable/auth/whoami   │ v1.WhoAmIResponse            │
//	└────────┴───────────────────────────┴──────────────────────────────┘
//
// # Error Mapping
//
//	┌──────────────────────────────┬─────────────┐
//	│ Condition                    │ HTTP Status │
//	├──────────────────────────────┼─────────────┤
//	│ Malformed body, empty fields │ 400         │
//	│ UnauthorizedError            │ 401         │
//	│ Missing bearer token         │ 401         │
//	│ Token signing failure        │ 500         │
//	└──────────────────────────────┴─────────────┘
//
// Every error body is a v1.ErrorResponse.
package handlers
