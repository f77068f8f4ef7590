package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ResourceNotFoundError is returned when a cluster resource does not exist (yet).
type ResourceNotFoundError struct {
	Kind      string
	Name      string
	Namespace string
}

func NewResourceNotFoundError(kind, name, namespace string) *ResourceNotFoundError {
	return &ResourceNotFoundError{Kind: kind, Name: name, Namespace: namespace}
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found in namespace %q", e.Kind, e.Name, e.Namespace)
}

func IsResourceNotFoundError(err error) bool {
	var e *ResourceNotFoundError
	return errors.As(err, &e)
}

// FetchError marks a status query that failed at the process or parse level.
// The poller retries it like a convergence mismatch.
type FetchError struct {
	Action string
	Cause  error
}

func NewFetchError(action string, cause error) *FetchError {
	return &FetchError{Action: action, Cause: cause}
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch status of action %q: %v", e.Action, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

func IsFetchError(err error) bool {
	var e *FetchError
	return errors.As(err, &e)
}

// MalformedStatusError is returned when a status record lacks a required field
// or is not valid JSON.
type MalformedStatusError struct {
	Field  string
	Reason string
}

func NewMalformedStatusError(field, reason string) *MalformedStatusError {
	return &MalformedStatusError{Field: field, Reason: reason}
}

func (e *MalformedStatusError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed status record: %s", e.Reason)
	}
	return fmt.Sprintf("malformed status record: field %q %s", e.Field, e.Reason)
}

func IsMalformedStatusError(err error) bool {
	var e *MalformedStatusError
	return errors.As(err, &e)
}

// CommandError carries the combined output of a failed external command.
type CommandError struct {
	Command string
	Args    []string
	Output  []byte
	Cause   error
}

func NewCommandError(command string, args []string, output []byte, cause error) *CommandError {
	return &CommandError{Command: command, Args: args, Output: output, Cause: cause}
}

func (e *CommandError) Error() string {
	line := strings.TrimSpace(e.Command + " " + strings.Join(e.Args, " "))
	out := strings.TrimSpace(string(e.Output))
	if out == "" {
		return fmt.Sprintf("command %q failed: %v", line, e.Cause)
	}
	return fmt.Sprintf("command %q failed: %v: %s", line, e.Cause, out)
}

func (e *CommandError) Unwrap() error {
	return e.Cause
}

func IsCommandError(err error) bool {
	var e *CommandError
	return errors.As(err, &e)
}

// LoginError is returned when the backup repository refuses a login.
type LoginError struct {
	StatusCode int
	Body       string
}

func NewLoginError(statusCode int, body string) *LoginError {
	return &LoginError{StatusCode: statusCode, Body: body}
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("login failed with status %d: %s", e.StatusCode, e.Body)
}

func IsLoginError(err error) bool {
	var e *LoginError
	return errors.As(err, &e)
}

// ConfigurationError is returned by configuration validation.
type ConfigurationError struct {
	Field  string
	Reason string
}

func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

func IsConfigurationError(err error) bool {
	var e *ConfigurationError
	return errors.As(err, &e)
}

// UnauthorizedError is returned when credentials or a token are rejected.
type UnauthorizedError struct {
	Reason string
}

func NewUnauthorizedError(reason string) *UnauthorizedError {
	return &UnauthorizedError{Reason: reason}
}

func (e *UnauthorizedError) Error() string {
	return "unauthorized: " + e.Reason
}

func IsUnauthorizedError(err error) bool {
	var e *UnauthorizedError
	return errors.As(err, &e)
}
