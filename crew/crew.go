// Package crew implements a small multi-agent orchestration engine: agents
// with roles, an ordered task list, and sequential or hierarchical
// execution where each task's output feeds the context of later tasks.
package crew

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("perfcrew/crew")

// Role describes what an agent is and what it is allowed to do.
type Role struct {
	Name            string   `json:"name"`
	Goal            string   `json:"goal"`
	Backstory       string   `json:"backstory,omitempty"`
	Tools           []string `json:"tools,omitempty"`
	AllowDelegation bool     `json:"allow_delegation"`
}

// CrewMember pairs an agent with its role inside one crew.
type CrewMember struct {
	ID     string       `json:"id"`
	Role   Role         `json:"role"`
	Agent  CrewAgent    `json:"-"`
	Status MemberStatus `json:"status"`
}

// MemberStatus is a member's current availability.
type MemberStatus string

const (
	MemberStatusIdle    MemberStatus = "idle"
	MemberStatusWorking MemberStatus = "working"
)

// CrewAgent is the execution interface a crew drives.
type CrewAgent interface {
	ID() string
	Execute(ctx context.Context, task CrewTask) (*TaskResult, error)
	Negotiate(ctx context.Context, proposal Proposal) (*NegotiationResult, error)
}

// CrewTask is one unit of work assigned to an agent.
type CrewTask struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Expected    string   `json:"expected_output"`
	Context     string   `json:"context,omitempty"` // accumulated upstream output
	ContextRefs []string `json:"context_refs,omitempty"`
	AssignedTo  string   `json:"assigned_to,omitempty"`
	OutputFile  string   `json:"output_file,omitempty"`
}

// TaskResult is the outcome of one task.
type TaskResult struct {
	TaskID   string        `json:"task_id"`
	Output   string        `json:"output"`
	Error    string        `json:"error,omitempty"`
	Tokens   int           `json:"tokens,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Proposal is a delegation request between members.
type Proposal struct {
	Type       ProposalType `json:"type"`
	FromMember string       `json:"from_member"`
	ToMember   string       `json:"to_member,omitempty"`
	Task       *CrewTask    `json:"task,omitempty"`
	Message    string       `json:"message"`
}

// ProposalType defines the kind of proposal.
type ProposalType string

const (
	ProposalTypeDelegate ProposalType = "delegate"
	ProposalTypeInform   ProposalType = "inform"
)

// NegotiationResult is a member's answer to a proposal.
type NegotiationResult struct {
	Accepted bool   `json:"accepted"`
	Response string `json:"response"`
}

// ProcessType defines how tasks are dispatched.
type ProcessType string

const (
	ProcessSequential   ProcessType = "sequential"
	ProcessHierarchical ProcessType = "hierarchical"
)

// Crew is a set of agents executing an ordered task list.
type Crew struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Members []*CrewMember `json:"members"`
	Tasks   []*CrewTask   `json:"tasks"`
	Process ProcessType   `json:"process"`
	Verbose bool          `json:"verbose"`

	logger  *zap.Logger
	metrics *crewMetrics
	mu      sync.Mutex
	byID    map[string]*CrewMember
	started bool
}

// CrewConfig configures a crew.
type CrewConfig struct {
	Name    string
	Process ProcessType
	Verbose bool
}

// NewCrew creates an empty crew.
func NewCrew(config CrewConfig, logger *zap.Logger) *Crew {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Process == "" {
		config.Process = ProcessSequential
	}
	metrics, err := newCrewMetrics()
	if err != nil {
		logger.Warn("crew metrics unavailable", zap.Error(err))
	}
	return &Crew{
		ID:      fmt.Sprintf("crew_%d", time.Now().UnixNano()),
		Name:    config.Name,
		Process: config.Process,
		Verbose: config.Verbose,
		byID:    make(map[string]*CrewMember),
		logger:  logger.With(zap.String("component", "crew"), zap.String("crew", config.Name)),
		metrics: metrics,
	}
}

// AddMember adds an agent with its role. Member order is preserved; the
// hierarchical process treats the first delegating member as the manager.
func (c *Crew) AddMember(agent CrewAgent, role Role) *CrewMember {
	c.mu.Lock()
	defer c.mu.Unlock()

	member := &CrewMember{
		ID:     agent.ID(),
		Role:   role,
		Agent:  agent,
		Status: MemberStatusIdle,
	}
	c.Members = append(c.Members, member)
	c.byID[member.ID] = member
	c.logger.Info("added crew member", zap.String("id", member.ID), zap.String("role", role.Name))
	return member
}

// AddTask appends a task. Tasks referencing an unknown agent are rejected
// so roster mistakes surface before any LLM call is made.
func (c *Crew) AddTask(task CrewTask) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if task.ID == "" {
		task.ID = fmt.Sprintf("task_%d", len(c.Tasks)+1)
	}
	if task.AssignedTo != "" {
		if _, ok := c.byID[task.AssignedTo]; !ok {
			return fmt.Errorf("task %s references unknown agent %q", task.ID, task.AssignedTo)
		}
	}
	for _, ref := range task.ContextRefs {
		if !c.hasTask(ref) {
			return fmt.Errorf("task %s references unknown context task %q", task.ID, ref)
		}
	}
	c.Tasks = append(c.Tasks, &task)
	return nil
}

// ReportPath returns the output file of the final task, empty when no
// task writes one.
func (c *Crew) ReportPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Tasks) == 0 {
		return ""
	}
	return c.Tasks[len(c.Tasks)-1].OutputFile
}

func (c *Crew) hasTask(id string) bool {
	for _, t := range c.Tasks {
		if t.ID == id {
			return true
		}
	}
	return false
}

// CrewResult carries the outcome of one crew run.
type CrewResult struct {
	CrewID      string                 `json:"crew_id"`
	TaskResults map[string]*TaskResult `json:"task_results"`
	TaskOrder   []string               `json:"task_order"`
	FinalOutput string                 `json:"final_output"`
	StartTime   time.Time              `json:"start_time"`
	EndTime     time.Time              `json:"end_time"`
	Duration    time.Duration          `json:"duration"`
}

// Kickoff runs every task and returns the collected results. The final
// task's output becomes FinalOutput and, when the task names an output
// file, is also written to disk.
func (c *Crew) Kickoff(ctx context.Context) (*CrewResult, error) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil, fmt.Errorf("crew %s already started", c.Name)
	}
	c.started = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
	}()

	if len(c.Tasks) == 0 {
		return nil, fmt.Errorf("crew %s has no tasks", c.Name)
	}
	if len(c.Members) == 0 {
		return nil, fmt.Errorf("crew %s has no members", c.Name)
	}

	ctx, span := tracer.Start(ctx, "crew.kickoff", trace.WithAttributes(
		attribute.String("crew.name", c.Name),
		attribute.String("crew.process", string(c.Process)),
		attribute.Int("crew.tasks", len(c.Tasks)),
	))
	defer span.End()

	c.logger.Info("starting crew run",
		zap.String("process", string(c.Process)),
		zap.Int("tasks", len(c.Tasks)),
		zap.Int("members", len(c.Members)))
	start := time.Now()

	result := &CrewResult{
		CrewID:      c.ID,
		TaskResults: make(map[string]*TaskResult),
		StartTime:   start,
	}

	var err error
	switch c.Process {
	case ProcessHierarchical:
		err = c.runHierarchical(ctx, result)
	default:
		err = c.runSequential(ctx, result)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.metrics.recordRun(ctx, c.Process, "error")
		return result, err
	}
	c.metrics.recordRun(ctx, c.Process, "ok")

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(start)
	if n := len(result.TaskOrder); n > 0 {
		result.FinalOutput = result.TaskResults[result.TaskOrder[n-1]].Output
	}

	if err := c.writeOutputs(result); err != nil {
		return result, err
	}

	c.logger.Info("crew run completed", zap.Duration("duration", result.Duration))
	return result, nil
}

// runSequential executes tasks in order. A task with explicit context refs
// receives those tasks' outputs; otherwise the previous task's output is
// chained in.
func (c *Crew) runSequential(ctx context.Context, result *CrewResult) error {
	var previous *TaskResult
	for _, task := range c.Tasks {
		member := c.assignee(task)
		if member == nil {
			return fmt.Errorf("no member available for task %s", task.ID)
		}

		t := *task
		t.Context = c.buildContext(task, result, previous)

		taskResult, err := c.runTask(ctx, member, t)
		if err != nil {
			return fmt.Errorf("task %s failed: %w", task.ID, err)
		}
		result.TaskResults[task.ID] = taskResult
		result.TaskOrder = append(result.TaskOrder, task.ID)
		previous = taskResult
	}
	return nil
}

// runHierarchical lets the manager (first delegating member) offer each
// task to its assignee; a declined or failed negotiation falls back to the
// manager itself.
func (c *Crew) runHierarchical(ctx context.Context, result *CrewResult) error {
	var manager *CrewMember
	for _, m := range c.Members {
		if m.Role.AllowDelegation {
			manager = m
			break
		}
	}
	if manager == nil {
		manager = c.Members[0]
	}

	var previous *TaskResult
	for _, task := range c.Tasks {
		delegatee := c.assignee(task)
		if delegatee == nil {
			delegatee = manager
		}

		if delegatee.ID != manager.ID {
			proposal := Proposal{
				Type:       ProposalTypeDelegate,
				FromMember: manager.ID,
				ToMember:   delegatee.ID,
				Task:       task,
				Message:    fmt.Sprintf("Please handle task: %s", task.ID),
			}
			neg, err := delegatee.Agent.Negotiate(ctx, proposal)
			if err != nil {
				c.logger.Warn("delegation failed, manager takes the task",
					zap.String("delegatee", delegatee.ID),
					zap.String("task", task.ID),
					zap.Error(err))
				delegatee = manager
			} else if neg != nil && !neg.Accepted {
				delegatee = manager
			}
		}

		t := *task
		t.Context = c.buildContext(task, result, previous)

		taskResult, err := c.runTask(ctx, delegatee, t)
		if err != nil {
			return fmt.Errorf("task %s failed: %w", task.ID, err)
		}
		result.TaskResults[task.ID] = taskResult
		result.TaskOrder = append(result.TaskOrder, task.ID)
		previous = taskResult
	}
	return nil
}

func (c *Crew) runTask(ctx context.Context, member *CrewMember, task CrewTask) (*TaskResult, error) {
	ctx, span := tracer.Start(ctx, "crew.task", trace.WithAttributes(
		attribute.String("task.id", task.ID),
		attribute.String("task.agent", member.ID),
	))
	defer span.End()

	member.Status = MemberStatusWorking
	defer func() { member.Status = MemberStatusIdle }()

	if c.Verbose {
		c.logger.Info("executing task",
			zap.String("task", task.ID),
			zap.String("agent", member.ID))
	}

	start := time.Now()
	taskResult, err := member.Agent.Execute(ctx, task)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if taskResult.TaskID == "" {
		taskResult.TaskID = task.ID
	}
	if taskResult.Duration == 0 {
		taskResult.Duration = time.Since(start)
	}
	c.metrics.recordTask(ctx, task.ID, member.ID, taskResult.Duration, taskResult.Tokens)
	return taskResult, nil
}

// buildContext assembles the upstream output a task sees.
func (c *Crew) buildContext(task *CrewTask, result *CrewResult, previous *TaskResult) string {
	if len(task.ContextRefs) > 0 {
		parts := make([]string, 0, len(task.ContextRefs))
		for _, ref := range task.ContextRefs {
			if r, ok := result.TaskResults[ref]; ok {
				parts = append(parts, r.Output)
			}
		}
		return strings.Join(parts, "\n\n")
	}
	if previous != nil {
		return previous.Output
	}
	return ""
}

func (c *Crew) assignee(task *CrewTask) *CrewMember {
	if task.AssignedTo != "" {
		if member, ok := c.byID[task.AssignedTo]; ok {
			return member
		}
		return nil
	}
	for _, member := range c.Members {
		if member.Status == MemberStatusIdle {
			return member
		}
	}
	return nil
}

// writeOutputs persists each task's output file, when configured.
func (c *Crew) writeOutputs(result *CrewResult) error {
	for _, task := range c.Tasks {
		if task.OutputFile == "" {
			continue
		}
		r, ok := result.TaskResults[task.ID]
		if !ok {
			continue
		}
		if dir := filepath.Dir(task.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create output dir for %s: %w", task.OutputFile, err)
			}
		}
		if err := os.WriteFile(task.OutputFile, []byte(r.Output), 0o644); err != nil {
			return fmt.Errorf("failed to write output file %s: %w", task.OutputFile, err)
		}
		c.logger.Info("task output written",
			zap.String("task", task.ID),
			zap.String("file", task.OutputFile))
	}
	return nil
}
