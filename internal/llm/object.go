package llm

import (
	"context"
	"encoding/json"
)

// Validator lets target types enforce their own generation contract after
// unmarshalling. A validation failure is reported as ErrInvalidObject, which
// callers treat the same way as a failed generation call.
type Validator interface {
	Validate() error
}

// GenerateObject runs one constrained generation call and decodes the response
// into out. The request is forced into JSON mode; the raw response is still
// passed through ExtractJSON because not every provider honors it.
func GenerateObject(ctx context.Context, provider Provider, req Request, out any) error {
	req.JSONResponse = true
	content, err := provider.Generate(ctx, req)
	if err != nil {
		return err
	}
	raw := ExtractJSON(content)
	if raw == "" {
		return ErrInvalidObject{Reason: "no JSON object in response"}
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return ErrInvalidObject{Reason: err.Error()}
	}
	if validator, ok := out.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return ErrInvalidObject{Reason: err.Error()}
		}
	}
	return nil
}
