package types

// Operation identifies the kind of mutation a log entry records
type Operation string

const (
	OpCreate   Operation = "CREATE"
	OpUpdate   Operation = "UPDATE"
	OpReplace  Operation = "REPLACE"
	OpDelete   Operation = "DELETE"
	OpRename   Operation = "RENAME"
	OpSnapshot Operation = "SNAPSHOT"
)

// Record is the unit stored by a backend: an opaque value addressed by ref
type Record struct {
	Ref  string `json:"ref"`
	Data any    `json:"data"`
}

// Blob is an immutable content-addressed value held in Storage.
// Ref is the SHA-256 hex of the canonical serialization of Data.
type Blob struct {
	Ref  string `json:"ref"`
	Data any    `json:"data"`
}

// LogEntry is one record in the append-only operation log
type LogEntry struct {
	Ref        string         `json:"ref"`
	Key        string         `json:"key,omitempty"`
	Operation  Operation      `json:"operation"`
	DataRef    string         `json:"data_ref,omitempty"`
	User       string         `json:"user,omitempty"`
	ModifiedOn float64        `json:"modified_on"`
	Previous   string         `json:"previous,omitempty"`
	Parameters map[string]any `json:"operation_parameters,omitempty"`
}

// Document is a materialized state row: the current view of one key.
// Data may be nil even when DataRef is set; readers resolve it lazily
// through Storage.
type Document struct {
	Key        string  `json:"key"`
	Data       any     `json:"data,omitempty"`
	DataRef    string  `json:"data_ref,omitempty"`
	LogRef     string  `json:"log_ref"`
	CreatedOn  float64 `json:"created_on"`
	ModifiedOn float64 `json:"modified_on"`
}

// SnapshotPair ties a live document's latest log entry to its data blob.
// A SNAPSHOT log's blob holds the ordered list of these pairs.
type SnapshotPair struct {
	LogRef  string `json:"log_ref"`
	DataRef string `json:"data_ref"`
}

// BackendDescriptor names a registered backend and its settings
type BackendDescriptor struct {
	Backend  string         `json:"backend" yaml:"backend"`
	Settings map[string]any `json:"settings" yaml:"settings"`
}

// SchemaDescriptor selects a validator type and carries its schema document
type SchemaDescriptor struct {
	Type   string `json:"type" yaml:"type"`
	Schema any    `json:"schema" yaml:"schema"`
}

// CollectionDescriptor is the metadata document stored in the parent
// namespace for each collection
type CollectionDescriptor struct {
	UUID        string            `json:"uuid" yaml:"uuid"`
	Permissions map[string]uint8  `json:"permissions" yaml:"permissions"`
	Logger      BackendDescriptor `json:"logger" yaml:"logger"`
	Storage     BackendDescriptor `json:"storage" yaml:"storage"`
	State       BackendDescriptor `json:"state" yaml:"state"`
	Schema      *SchemaDescriptor `json:"schema,omitempty" yaml:"schema,omitempty"`
}
