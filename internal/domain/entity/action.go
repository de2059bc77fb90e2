package entity

// Action is one browser operation proposed by the model. Arguments is the
// raw JSON payload; the session implementation parses it per action name.
type Action struct {
	Name      string
	Arguments string
}

// Decision is the outcome of one model call: either a final answer or the
// next action to execute.
type Decision struct {
	Done        bool
	FinalAnswer string
	Action      *Action
}

// ActionDefinition describes one action of the catalog in a form both the
// tool-calling adapters and the prompt builder can consume.
type ActionDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// AgentState is the read-only view of a run handed to the model on each
// decide call.
type AgentState struct {
	Task  Task
	Steps []Step
}
