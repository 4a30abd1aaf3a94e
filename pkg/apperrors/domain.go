package apperrors

import "net/http"

// Factories for wrapping repository errors into domain-shaped AppErrors.

// ErrNotFound converts a repository miss (e.g. gorm.ErrRecordNotFound) into a 404.
func ErrNotFound(err error, domain, message string) *AppError {
	return Wrap(err, CodeNotFound, domain, message, http.StatusNotFound)
}

// ErrAlreadyExists converts a uniqueness violation into a 409.
func ErrAlreadyExists(err error, domain, message string) *AppError {
	return Wrap(err, CodeAlreadyExists, domain, message, http.StatusConflict)
}

// ErrConflict is the general 409 factory.
func ErrConflict(err error, domain, message string) *AppError {
	return Wrap(err, CodeConflict, domain, message, http.StatusConflict)
}

// ErrInvalidOperation builds a 400 for operations the business rules forbid.
func ErrInvalidOperation(domain, message string) *AppError {
	return New(CodeInvalidOperation, domain, message, http.StatusBadRequest)
}

// Predefined chat errors. Kept as variables so services can errors.Is on them.
var (
	ErrConversationNotFound = New(CodeNotFound, "chat", "Conversation not found", http.StatusNotFound)
	ErrMessageNotFound      = New(CodeNotFound, "chat", "Message not found", http.StatusNotFound)
	ErrParticipantNotFound  = New(CodeNotFound, "chat", "Participant not found", http.StatusNotFound)
	ErrNotParticipant       = New(CodeForbidden, "chat", "User is not a participant of this conversation", http.StatusForbidden)
	ErrConversationArchived = New(CodeInvalidOperation, "chat", "Conversation is archived", http.StatusBadRequest)

	ErrNotificationNotFound = New(CodeNotFound, "notification", "Notification not found", http.StatusNotFound)

	ErrUserNotFound       = New(CodeNotFound, "user", "User not found", http.StatusNotFound)
	ErrInvalidCredentials = New(CodeInvalidCredentials, "auth", "Invalid email or password", http.StatusUnauthorized)
	ErrEmailTaken         = New(CodeAlreadyExists, "auth", "Email is already registered", http.StatusConflict)
)
