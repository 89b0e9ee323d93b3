package model

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

type LogoutRequest struct {
	Reason string `json:"reason"`
}

type ValidateRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

type ActivityRequest struct {
	Signal ActivitySignal `json:"signal"`
}

type FlagUpdateRequest struct {
	Enabled *bool `json:"enabled"`
}
