package dto

// ConfigurationItem is the API shape for a configuration entry.
type ConfigurationItem struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// UpdateConfigurationRequest updates a single configuration key.
type UpdateConfigurationRequest struct {
	Value string `json:"value" validate:"required"`
}
