package domain

// ContactSubmission — форма обратной связи в том виде, в каком ее шлет сайт.
type ContactSubmission struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Business  string `json:"business,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Message   string `json:"message"`
}

// ValidationResult — Valid истинно тогда и только тогда, когда Errors пуст.
type ValidationResult struct {
	Valid  bool
	Errors []string
}
