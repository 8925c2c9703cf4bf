package domain

// IngestionState tracks whether the session has usable documents
type IngestionState string

const (
	StateIdle      IngestionState = "idle"
	StateIngesting IngestionState = "ingesting"
	StateReady     IngestionState = "ready"
)

func (s IngestionState) String() string {
	return string(s)
}
