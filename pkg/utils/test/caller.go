package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/releaselens/releaselens/pkg/genai"
)

// ScriptedCaller replays a fixed sequence of LLM responses, recording
// every prompt it receives.
type ScriptedCaller struct {
	mu        sync.Mutex
	responses []string
	next      int

	// Err, when set, is returned for every call instead of a response
	Err error

	Prompts []string
	Systems []string
}

func NewScriptedCaller(responses ...string) *ScriptedCaller {
	return &ScriptedCaller{responses: responses}
}

// Call implements genai.CallFunc.
func (s *ScriptedCaller) Call(_ context.Context, system, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Systems = append(s.Systems, system)
	s.Prompts = append(s.Prompts, prompt)

	if s.Err != nil {
		return "", s.Err
	}
	if s.next >= len(s.responses) {
		return "", fmt.Errorf("scripted caller exhausted after %d responses", len(s.responses))
	}

	resp := s.responses[s.next]
	s.next++
	return resp, nil
}

var _ genai.CallFunc = (&ScriptedCaller{}).Call
