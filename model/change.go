package model

// OperationKind is the wire discriminator of an operation.
type OperationKind string

const (
	KindInsertBefore OperationKind = "INSERT_BEFORE"
	KindInsertAfter  OperationKind = "INSERT_AFTER"
	KindDelete       OperationKind = "DELETE"
	KindCreateFile   OperationKind = "CREATE_FILE"
	KindRenameFile   OperationKind = "RENAME_FILE"
	KindDeleteFile   OperationKind = "DELETE_FILE"
)

// Kinds lists every supported operation kind in wire order.
var Kinds = []OperationKind{
	KindInsertAfter,
	KindInsertBefore,
	KindDelete,
	KindCreateFile,
	KindRenameFile,
	KindDeleteFile,
}

// Operation is one of InsertBefore, InsertAfter, Delete, CreateFile,
// RenameFile or DeleteFile.
type Operation interface {
	Kind() OperationKind
	// Describe returns the action text shown to the user.
	Describe() string
	isOperation()
}

// InsertBefore splices Insert immediately before the located Marker.
type InsertBefore struct {
	Insert Lines
	Marker Lines
}

// InsertAfter splices Insert immediately after the located Marker.
type InsertAfter struct {
	Insert Lines
	Marker Lines
}

// Delete removes the located Target lines.
type Delete struct {
	Target Lines
}

// CreateFile writes Content as a new file.
type CreateFile struct {
	Content Lines
}

// RenameFile moves the file to NewPath.
type RenameFile struct {
	NewPath string
}

// DeleteFile removes the file.
type DeleteFile struct{}

func (InsertBefore) Kind() OperationKind { return KindInsertBefore }
func (InsertAfter) Kind() OperationKind  { return KindInsertAfter }
func (Delete) Kind() OperationKind       { return KindDelete }
func (CreateFile) Kind() OperationKind   { return KindCreateFile }
func (RenameFile) Kind() OperationKind   { return KindRenameFile }
func (DeleteFile) Kind() OperationKind   { return KindDeleteFile }

func (InsertBefore) Describe() string { return "Inserting new lines before a marker" }
func (InsertAfter) Describe() string  { return "Inserting new lines after a marker" }
func (Delete) Describe() string       { return "Deleting lines" }
func (CreateFile) Describe() string   { return "Creating a new file" }
func (RenameFile) Describe() string   { return "Renaming a file" }
func (DeleteFile) Describe() string   { return "Deleting a file" }

func (InsertBefore) isOperation() {}
func (InsertAfter) isOperation()  {}
func (Delete) isOperation()       {}
func (CreateFile) isOperation()   {}
func (RenameFile) isOperation()   {}
func (DeleteFile) isOperation()   {}

// Change is a single edit instruction against one file. Reason is carried
// for reporting only.
type Change struct {
	Path   string
	Op     Operation
	Reason string
}

// Payload is the decoded edit document.
type Payload struct {
	Explanation string
	Changes     []Change
	Conclusion  string
}
