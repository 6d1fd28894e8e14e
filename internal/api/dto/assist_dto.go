package dto

// SuggestRequest asks the assistant to classify a draft ticket.
type SuggestRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=10000"`
}

// AskRequest is a free-form question about one ticket.
type AskRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
}
