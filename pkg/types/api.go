package types

// Task represents one challenge submission for POST /task.
type Task struct {
	// Optional API key. Required when the server is started with an API key.
	// example: secret
	APIKey string `json:"api_key,omitempty" example:"secret"`
	// Base64 encoded images, optionally prefixed with a data URL header ending in a comma.
	// example: ["data:image/png;base64,iVBORw0KGgo..."]
	Images []string `json:"images"`
	// Variant name and the human readable instruction shown with the challenge.
	// example: ["3d_rollball_objects","Use the arrows to rotate the object to face in the direction of the hand"]
	GameVariantInstructions [2]string `json:"game_variant_instructions"`
}

// VariantName returns the challenge variant name of the task.
func (t Task) VariantName() string { return t.GameVariantInstructions[0] }

// Instruction returns the human readable instruction of the task.
func (t Task) Instruction() string { return t.GameVariantInstructions[1] }

// TaskResult is the response of POST /task. Error and Objects are never both set.
type TaskResult struct {
	// Error message when the task could not be solved.
	// example: unknown variant type: foo
	Error string `json:"error,omitempty" example:"unknown variant type: foo"`
	// Whether every image received an answer.
	// example: true
	Solved bool `json:"solved" example:"true"`
	// One answer per submitted image, in submission order.
	// example: [3]
	Objects []int `json:"objects,omitempty" example:"3"`
}

// Solved builds a successful result.
func Solved(objects []int) TaskResult {
	return TaskResult{Solved: true, Objects: objects}
}

// Failed builds a failed result carrying err's message.
func Failed(err error) TaskResult {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return TaskResult{Error: msg}
}

// ErrorResponse is a consistent JSON error payload for non-task endpoints.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// VariantInfo describes one supported challenge variant.
type VariantInfo struct {
	// Wire name used in game_variant_instructions.
	// example: 3d_rollball_objects
	Name string `json:"name" example:"3d_rollball_objects"`
	// Stable ordinal of the variant.
	// example: 1
	Ordinal int `json:"ordinal" example:"1"`
	// Model artifact file backing the variant.
	// example: 3d_rollball_objects.onnx
	Artifact string `json:"artifact" example:"3d_rollball_objects.onnx"`
	// Predictor shape: classifier or pair.
	// example: pair
	Shape string `json:"shape" example:"pair"`
	// Whether crops are converted to grayscale before inference.
	Grayscale bool `json:"grayscale,omitempty"`
}

// VariantsResponse wraps the list returned by GET /variants.
type VariantsResponse struct {
	Variants []VariantInfo `json:"variants"`
}

// PredictorStatus summarizes one registry slot for /status.
type PredictorStatus struct {
	// Variant name.
	// example: card
	Variant string `json:"variant" example:"card"`
	// Slot state: empty, building or ready.
	// example: ready
	State string `json:"state" example:"ready"`
	// Whether the predictor has a working session. Only meaningful when ready.
	// example: true
	Active bool `json:"active" example:"true"`
	// Build error for inactive predictors.
	Error string `json:"error,omitempty"`
	// Time the slot became ready (unix seconds).
	// example: 1700000000
	ReadyAt int64 `json:"ready_at_unix,omitempty" example:"1700000000"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Registry slots that have been requested at least once.
	Predictors []PredictorStatus `json:"predictors"`
	// Number of predictor builds performed since start.
	// example: 3
	BuildsTotal uint64 `json:"builds_total" example:"3"`
	// Configured fallback provider, if any.
	// example: capsolver
	Fallback string `json:"fallback,omitempty" example:"capsolver"`
	// Maximum images per task.
	// example: 3
	Limit int `json:"limit" example:"3"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
