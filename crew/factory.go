package crew

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hypermindz/perfcrew/llm"
	"github.com/hypermindz/perfcrew/llm/tools"
)

// DefaultOutputFile is where the final task's output lands when neither
// the roster nor the caller names a report file.
const DefaultOutputFile = "output.md"

// BuildConfig carries everything needed to assemble a crew from rosters.
type BuildConfig struct {
	Name          string
	Process       ProcessType
	Verbose       bool
	Model         string
	Temperature   float32
	MaxTokens     int
	MaxIterations int
	Inputs        map[string]string // interpolated into roster free text
	OutputFile    string            // explicit report path; empty leaves the roster in charge
}

// Build assembles a runnable crew from parsed rosters. Roster mistakes
// (unknown agent or tool references, unknown context tasks) fail here,
// before any model call happens.
func Build(cfg BuildConfig, agents *AgentRoster, tasks *TaskRoster, provider llm.Provider, registry tools.ToolRegistry, logger *zap.Logger) (*Crew, error) {
	if len(agents.Order) == 0 {
		return nil, fmt.Errorf("agents roster is empty")
	}
	if len(tasks.Order) == 0 {
		return nil, fmt.Errorf("tasks roster is empty")
	}

	c := NewCrew(CrewConfig{
		Name:    cfg.Name,
		Process: cfg.Process,
		Verbose: cfg.Verbose,
	}, logger)

	for _, key := range agents.Order {
		def := agents.Agents[key]
		role := InterpolateRole(Role{
			Name:            def.Role,
			Goal:            def.Goal,
			Backstory:       def.Backstory,
			Tools:           def.Tools,
			AllowDelegation: def.AllowDelegation,
		}, cfg.Inputs)

		agent, err := NewLLMAgent(LLMAgentConfig{
			ID:            key,
			Model:         cfg.Model,
			Temperature:   cfg.Temperature,
			MaxTokens:     cfg.MaxTokens,
			MaxIterations: cfg.MaxIterations,
		}, role, provider, registry, logger)
		if err != nil {
			return nil, err
		}
		c.AddMember(agent, role)
	}

	for i, key := range tasks.Order {
		def := tasks.Tasks[key]
		task := InterpolateTask(CrewTask{
			ID:          key,
			Description: def.Description,
			Expected:    def.ExpectedOutput,
			ContextRefs: def.Context,
			AssignedTo:  def.Agent,
			OutputFile:  def.OutputFile,
		}, cfg.Inputs)

		// Report path precedence: an explicit caller value beats the
		// roster's output_file, which beats the default.
		if i == len(tasks.Order)-1 {
			if cfg.OutputFile != "" {
				task.OutputFile = cfg.OutputFile
			} else if task.OutputFile == "" {
				task.OutputFile = DefaultOutputFile
			}
		}

		if err := c.AddTask(task); err != nil {
			return nil, err
		}
	}

	return c, nil
}
