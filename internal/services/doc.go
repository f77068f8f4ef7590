// Package services holds the logic behind the in-process backup repository.
//
// Accounts keeps users in memory and issues HS256 JWTs carrying the user
// name as subject and a random jti. Tokens are verified against the same
// secret and rejected once the account is gone.
package services
