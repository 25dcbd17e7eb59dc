package handlers

import "github.com/Brownie44l1/hwr-api/internal/scoring"

type PredictionRequest struct {
	Image []float32 `json:"image" validate:"required"`
}

type PredictionResponse struct {
	Ranked []scoring.ClassScore `json:"ranked"`
}

// EvaluateRequest is the JSON form of an evaluation; multipart uploads use
// the "image" file and "target" form fields instead.
type EvaluateRequest struct {
	ImageBase64 string `json:"image_base64" validate:"required,base64"`
	Target      string `json:"target" validate:"required"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

type LabelsResponse struct {
	Labels []string `json:"labels"`
}

type PromptResponse struct {
	Target string `json:"target"`
	Index  int    `json:"index"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}
