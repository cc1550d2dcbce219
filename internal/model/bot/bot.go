package bot

// FieldType enumerates the value types a provider config schema can declare.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
)

// SchemaField describes one configurable field a provider accepts.
// Hidden fields are filled by the backend and not surfaced to clients.
type SchemaField struct {
	Name         string    `json:"name"`
	Type         FieldType `json:"type"`
	DefaultValue any       `json:"defaultValue,omitempty"`
	Min          float64   `json:"min,omitempty"`
	Max          float64   `json:"max,omitempty"`
	Step         float64   `json:"step,omitempty"`
	Hidden       bool      `json:"hidden,omitempty"`
}

// ConfigField is one named configuration value in a persisted bot snapshot.
type ConfigField struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Snapshot is the persisted form of a configured bot. It is everything needed
// to reconstruct a live bot when a session is stood back up.
type Snapshot struct {
	ProviderID string        `json:"providerId"`
	ModelID    string        `json:"modelId"`
	Config     []ConfigField `json:"config,omitempty"`
}

// ProviderInfo is the metadata a provider exposes to the session-preparation
// flow: its id, the models it can serve, and the config schema bots declare.
type ProviderInfo struct {
	ProviderID   string        `json:"providerId"`
	ModelsList   []string      `json:"modelsList"`
	ConfigSchema []SchemaField `json:"configSchema"`
}
