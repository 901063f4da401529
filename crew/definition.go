package crew

// AgentDef is one agent entry in the agents roster file. Role, goal and
// backstory are free text and may contain {name} placeholders filled from
// the run inputs.
type AgentDef struct {
	Role            string   `yaml:"role" json:"role"`
	Goal            string   `yaml:"goal" json:"goal"`
	Backstory       string   `yaml:"backstory,omitempty" json:"backstory,omitempty"`
	Tools           []string `yaml:"tools,omitempty" json:"tools,omitempty"`
	AllowDelegation bool     `yaml:"allow_delegation,omitempty" json:"allow_delegation,omitempty"`
}

// TaskDef is one task entry in the tasks roster file. Agent references an
// agent key from the agents roster; Context references other task keys
// whose outputs feed this task.
type TaskDef struct {
	Description    string   `yaml:"description" json:"description"`
	ExpectedOutput string   `yaml:"expected_output" json:"expected_output"`
	Agent          string   `yaml:"agent" json:"agent"`
	Context        []string `yaml:"context,omitempty" json:"context,omitempty"`
	OutputFile     string   `yaml:"output_file,omitempty" json:"output_file,omitempty"`
}

// AgentRoster is the parsed agents file. Keys are agent identifiers.
type AgentRoster struct {
	Agents map[string]AgentDef
	Order  []string // keys in file order
}

// TaskRoster is the parsed tasks file. Task order follows the file, which
// is the execution order for the sequential process.
type TaskRoster struct {
	Tasks map[string]TaskDef
	Order []string
}
