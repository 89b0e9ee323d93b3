package model

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *Meta     `json:"meta,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type Meta struct {
	Limit int `json:"limit"`
	Total int `json:"total"`
}

type LoginResult struct {
	Authenticated     bool      `json:"authenticated"`
	User              *AuthUser `json:"user,omitempty"`
	Lock              LockInfo  `json:"lock"`
	RemainingAttempts int       `json:"remaining_attempts"`
}

type AuthStatus struct {
	LoggedIn     bool         `json:"logged_in"`
	State        SessionState `json:"state"`
	Username     string       `json:"username,omitempty"`
	LogoutReason string       `json:"logout_reason,omitempty"`
}

type FieldValidation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

type ValidationResult struct {
	Username *FieldValidation `json:"username,omitempty"`
	Password *FieldValidation `json:"password,omitempty"`
}

type RememberStatus struct {
	Remembered bool   `json:"remembered"`
	Username   string `json:"username,omitempty"`
}

type SecurityEventList struct {
	Items []AuditEvent `json:"items"`
}

type LockStatus struct {
	Username          string   `json:"username"`
	Lock              LockInfo `json:"lock"`
	RemainingAttempts int      `json:"remaining_attempts"`
}

type ActivityResult struct {
	Recorded bool `json:"recorded"`
}
