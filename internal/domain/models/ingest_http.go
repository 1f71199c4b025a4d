package models

// CreateJobRequest is the job-submission payload.
type CreateJobRequest struct {
	Symbols   []string `json:"symbols" validate:"required,min=1,max=5000,dive,required"`
	ChunkSize int      `json:"chunkSize" default:"10" validate:"min=1,max=50"`
	AutoRun   bool     `json:"autoRun"`
}

// CreateJobResponse summarizes the created job and the coverage partition.
type CreateJobResponse struct {
	JobID         string             `json:"jobId"`
	TotalChunks   int                `json:"totalChunks"`
	AlreadyCached []string           `json:"alreadyCached"`
	Eliminated    []EliminatedSymbol `json:"eliminated"`
	ToProcess     []string           `json:"toProcess"`
}

// RunJobRequest resumes or starts a job. Async hands the job to the
// background runner instead of running within the request.
type RunJobRequest struct {
	BudgetSeconds int  `json:"budgetSeconds" default:"240" validate:"min=5,max=3600"`
	Async         bool `json:"async"`
}

// RunJobResponse reports one orchestrator invocation.
type RunJobResponse struct {
	Completed       bool      `json:"completed"`
	ChunksProcessed int       `json:"chunksProcessed"`
	Progress        *Progress `json:"progress"`
}

// CoverageRequest asks which of the given symbols still need fetching.
type CoverageRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1,max=5000,dive,required"`
}
