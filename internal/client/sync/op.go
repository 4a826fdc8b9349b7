package sync

// OpType labels one category of plan execution.
type OpType string

const (
	OpUpload       OpType = "Upload"
	OpDownload     OpType = "Download"
	OpDeleteLocal  OpType = "DeleteLocal"
	OpDeleteRemote OpType = "DeleteRemote"
	OpConflict     OpType = "Conflict"
)
