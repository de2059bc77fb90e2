package prompts

import (
	_ "embed"
)

//go:embed system.txt
var DefaultSystemPrompt string

//go:embed decision_protocol.txt
var DecisionProtocol string
