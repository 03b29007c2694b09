package api

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type StatusRequest struct {
	Status string  `json:"status"`
	Reason *string `json:"reason"`
}

type ReasonRequest struct {
	Reason *string `json:"reason"`
}

type PayRequest struct {
	PaymentMethod string `json:"payment_method"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
