package crm

// Config holds CRM API connection settings.
type Config struct {
	BaseURL        string `yaml:"base_url"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	AccountCode    string `yaml:"account_code"`
	ListID         string `yaml:"list_id"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ResponseMetadata is the envelope header on every CRM API response.
type ResponseMetadata struct {
	Error bool   `json:"error"`
	Total string `json:"total,omitempty"`
}

// Contact is a CRM contact record as returned by the contacts listing.
type Contact struct {
	Email string `json:"email"`
}

// LabelsResponse wraps a contact's label list.
type LabelsResponse struct {
	Metadata ResponseMetadata `json:"metadata"`
	Payload  []string         `json:"payload"`
}

// ContactsResponse wraps the full contact listing.
type ContactsResponse struct {
	Metadata ResponseMetadata `json:"metadata"`
	Payload  []Contact        `json:"payload"`
}

// mutateLabelRequest is the body for label add/remove calls.
type mutateLabelRequest struct {
	Label string `json:"label"`
}

// statusResponse wraps mutation acknowledgements.
type statusResponse struct {
	Metadata ResponseMetadata `json:"metadata"`
}
