// Package generator defines the port for the remote text-generation service.
package generator

import "context"

// Request carries a prompt and its sampling parameters.
type Request struct {
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

// Generator produces raw model output for a prompt. The output may still
// contain the echoed prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}
