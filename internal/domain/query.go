package domain

// QueryPayload is the request body sent to the agent API.
// IndustryToSearch is always serialised, even when empty.
type QueryPayload struct {
	UserQuery        string `json:"user_query"`
	YearToSearch     int    `json:"year_to_search"`
	IndustryToSearch string `json:"industry_to_search"`
}

// Citation is a source reference attached to an answer.
type Citation struct {
	DocumentName string `json:"document_name"`
	Year         int    `json:"year"`
	Industry     string `json:"industry,omitempty"`
	Page         int    `json:"page"`
	ChunkIndex   int    `json:"chunk_index"`
}

// ResponseEnvelope is the parsed agent API answer.
type ResponseEnvelope struct {
	UserQuery          string     `json:"user_query"`
	Answer             string     `json:"response"`
	Citations          []Citation `json:"document_information"`
	CurrentDate        string     `json:"current_date"`
	RecommendedQueries []string   `json:"recommended_queries"`
}
