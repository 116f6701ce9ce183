package chat

import (
	"fmt"
	"sync"
)

// DefaultModel is the model used when nothing else is selected.
const DefaultModel = "gemini-2.5-flash"

// ModelOption is one entry of the model catalog.
type ModelOption struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// ModelOptions is the catalog of models offered for selection. Any model ID
// accepted by the generation service also works; the catalog is advisory.
var ModelOptions = []ModelOption{
	{ID: "gemini-2.5-flash", DisplayName: "Gemini 2.5 Flash"},
	{ID: "gemini-3-pro-preview", DisplayName: "Gemini 3 Pro (Preview)"},
	{ID: "gemini-2.5-pro", DisplayName: "Gemini 2.5 Pro"},
	{ID: "gemini-2.5-flash-lite", DisplayName: "Gemini 2.5 Flash-Lite"},
}

// ModelSelection holds the model bound to new sessions. Changing it takes
// effect on the next send, which rebuilds the session.
type ModelSelection struct {
	mu      sync.Mutex
	current string
}

// NewModelSelection creates a selection starting at initial, or DefaultModel
// when initial is empty.
func NewModelSelection(initial string) *ModelSelection {
	if initial == "" {
		initial = DefaultModel
	}
	return &ModelSelection{current: initial}
}

// Current returns the selected model ID.
func (s *ModelSelection) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Set selects a model by ID. IDs outside the catalog are allowed so preview
// models can be used before they are listed.
func (s *ModelSelection) Set(id string) error {
	if id == "" {
		return fmt.Errorf("model id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = id
	return nil
}
