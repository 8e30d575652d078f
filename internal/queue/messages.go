package queue

// ArchiveExportMsg asks the worker to export the graph rooted at Root from
// the shared block store into an archive uploaded under ArchiveKey.
type ArchiveExportMsg struct {
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id"`
	GraphName     string `json:"graph_name"`
	Root          string `json:"root"`
	ArchiveKey    string `json:"archive_key"`
}

// ArchiveImportMsg asks the worker to download the archive under
// ArchiveKey, verify it, and install its blocks into the shared store.
type ArchiveImportMsg struct {
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id"`
	ArchiveKey    string `json:"archive_key"`
}

// ArchiveJobResult is broadcast on the pubsub exchange when a job finishes.
type ArchiveJobResult struct {
	CorrelationID string `json:"correlation_id"`
	GraphName     string `json:"graph_name"`
	Root          string `json:"root"`
	ArchiveKey    string `json:"archive_key"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
	EntityCount   int    `json:"entity_count,omitempty"`
	RelationCount int    `json:"relationship_count,omitempty"`
}
