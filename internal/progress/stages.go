package progress

// Stage identifies a phase of the composition pipeline.
type Stage string

const (
	StageDownloading Stage = "downloading"
	StageMerging     Stage = "merging"
	StageEncoding    Stage = "encoding"
	StageUploading   Stage = "uploading"
	StageCompleted   Stage = "completed"
	StageFailed      Stage = "failed"
)

// pipelineStages lists the working stages in execution order. Their
// weights reflect typical wall-clock share and must sum to 100.
var pipelineStages = []Stage{StageDownloading, StageMerging, StageEncoding, StageUploading}

var stageWeights = map[Stage]float64{
	StageDownloading: 20,
	StageMerging:     30,
	StageEncoding:    40,
	StageUploading:   10,
}

// IsTerminal reports whether the stage ends a job.
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Valid reports whether the stage is known.
func (s Stage) Valid() bool {
	if s.IsTerminal() {
		return true
	}
	_, ok := stageWeights[s]
	return ok
}

// OverallPercent folds a within-stage percentage into whole-job
// completion: the full weight of every earlier stage plus the weighted
// share of the current one. Terminal stages short-circuit to 100.
func OverallPercent(stage Stage, stagePercent float64) float64 {
	stagePercent = clampPercent(stagePercent)
	if stage.IsTerminal() {
		return 100
	}

	overall := 0.0
	for _, s := range pipelineStages {
		if s == stage {
			return clampPercent(overall + stageWeights[s]*stagePercent/100)
		}
		overall += stageWeights[s]
	}
	return stagePercent
}

func clampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
