package fallback

import "fmt"

// Provider names a remote solving service.
type Provider string

const (
	// YesCaptcha accepts one image per request.
	YesCaptcha Provider = "yescaptcha"
	// CapSolver accepts a batch of images per request.
	CapSolver Provider = "capsolver"
)

const (
	yesCaptchaEndpoint = "https://api.yescaptcha.com/createTask"
	capSolverEndpoint  = "https://api.capsolver.com/createTask"

	yesCaptchaSoftID = "26299"
	capSolverAppID   = "60632CB0-8BE8-41D3-808F-60CC2442F16E"

	taskType = "FunCaptchaClassification"
)

// ParseProvider validates a provider name.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case YesCaptcha, CapSolver:
		return Provider(s), nil
	default:
		return "", fmt.Errorf("unsupported fallback provider %q (want yescaptcha or capsolver)", s)
	}
}

// DefaultEndpoint returns the public createTask URL of p.
func (p Provider) DefaultEndpoint() string {
	if p == CapSolver {
		return capSolverEndpoint
	}
	return yesCaptchaEndpoint
}

// Batched reports whether p takes several images per request.
func (p Provider) Batched() bool { return p == CapSolver }

type taskRequest struct {
	ClientKey string   `json:"clientKey"`
	Task      taskBody `json:"task"`
	SoftID    string   `json:"softID,omitempty"`
	AppID     string   `json:"appId,omitempty"`
}

type taskBody struct {
	Type     string   `json:"type"`
	Image    string   `json:"image,omitempty"`
	Images   []string `json:"images,omitempty"`
	Question string   `json:"question"`
}

type taskResponse struct {
	ErrorID          int     `json:"errorId"`
	ErrorCode        string  `json:"errorCode"`
	ErrorDescription *string `json:"errorDescription"`
	Status           string  `json:"status"`
	Solution         struct {
		Objects []int `json:"objects"`
	} `json:"solution"`
}

// request builds the provider specific payload for one submission.
func (p Provider) request(key string, images []string, variantName, instruction string) taskRequest {
	if p == CapSolver {
		return taskRequest{
			ClientKey: key,
			Task:      taskBody{Type: taskType, Images: images, Question: variantName},
			AppID:     capSolverAppID,
		}
	}
	return taskRequest{
		ClientKey: key,
		Task:      taskBody{Type: taskType, Image: images[0], Question: instruction},
		SoftID:    yesCaptchaSoftID,
	}
}
