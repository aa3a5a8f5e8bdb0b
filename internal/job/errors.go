package job

import "fmt"

// Render stages reported in StageError.
const (
	StageExtract = "extract"
	StageReady   = "ready"
	StageEncode  = "encode"
	StageConcat  = "concat"
)

// StageError is a job-level failure carrying which scene and stage failed,
// enough for the caller to surface a retryable failure state. The runner
// never retries on its own.
type StageError struct {
	SceneIndex int    // position in the declared scene order, -1 for job-wide stages
	SceneID    string // resolved asset id, "" for job-wide stages
	Stage      string
	Err        error
}

func (e *StageError) Error() string {
	if e.SceneID == "" {
		return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("scene %d (%s), stage %s: %v", e.SceneIndex, e.SceneID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
