package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldComponent = "component"

	// Script fields
	FieldTech  = "tech"
	FieldFile  = "file"
	FieldType  = "type"
	FieldLabel = "label"
	FieldScope = "scope"

	// State fields
	FieldPath  = "path"
	FieldPaths = "paths"
	FieldAttr  = "attr"

	// Solver fields
	FieldModels   = "models"
	FieldChanges  = "changes"
	FieldDomain   = "domain"
	FieldDuration = "duration"
)
