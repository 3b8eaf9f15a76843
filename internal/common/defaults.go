// Package common provides shared utilities and default configuration.
package common

// DefaultKVValue represents a default key/value pair that is seeded on startup.
type DefaultKVValue struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

// GetDefaultKVValues returns the key/value pairs seeded on startup when
// missing. Credential keys are seeded empty so the KV listing documents
// which names the service consults; environment variables and non-empty
// stored values always win over these placeholders.
func GetDefaultKVValues() []DefaultKVValue {
	return []DefaultKVValue{
		{
			Key:         "claude_api_key",
			Value:       "",
			Description: "Anthropic API key for LLM job extraction",
		},
		{
			Key:         "gemini_api_key",
			Value:       "",
			Description: "Google API key for Gemini embeddings",
		},
		{
			Key:         "github_token",
			Value:       "",
			Description: "GitHub token for the github_orgs discovery source",
		},
	}
}
