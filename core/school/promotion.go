package school

// ValidationRequest asks for the advisory warnings of a prospective promotion.
type ValidationRequest struct {
	StudentID    string  `json:"student_id" validate:"required,admno"`
	TargetLevel  string  `json:"target_level" validate:"required"`
	TargetStream *string `json:"target_stream"`
}

type PromotionRequest struct {
	StudentID    string  `json:"student_id" validate:"required,admno"`
	TargetLevel  string  `json:"target_level" validate:"required"`
	TargetStream *string `json:"target_stream"`
	Outcome      Outcome `json:"outcome" validate:"required,oneof=promoted repeated transferred graduated"`
	Remarks      string  `json:"remarks,omitempty" validate:"max=500"`
}

// BulkPromotionRequest applies to every active student currently in the source cohort.
type BulkPromotionRequest struct {
	SourceLevel  string  `json:"source_level" validate:"required"`
	SourceStream *string `json:"source_stream"`
	TargetLevel  string  `json:"target_level" validate:"required"`
	TargetStream *string `json:"target_stream"`
}

func (r BulkPromotionRequest) Source() string { return CohortLabel(r.SourceLevel, r.SourceStream) }
func (r BulkPromotionRequest) Target() string { return CohortLabel(r.TargetLevel, r.TargetStream) }

type Warnings struct {
	Warnings []string `json:"warnings"`
}

type ExecutionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type StudentFailure struct {
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

// OutcomeReport is the result of a single bulk promotion call.
type OutcomeReport struct {
	Succeeded     int              `json:"succeeded"`
	TotalStudents int              `json:"total_students"`
	Failures      []StudentFailure `json:"failures"`
	Message       string           `json:"message"`
}
