// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data structures of the research-journey
// backend: projects and their phases, tasks, topics, the points ledger,
// achievements, communities and resources, and configuration.
package types

import "time"

// Phase is one of the four fixed stages a research project moves through.
type Phase string

const (
	PhaseDiscovery   Phase = "discovery"
	PhaseDesign      Phase = "design"
	PhaseDevelopment Phase = "development"
	PhaseEvaluation  Phase = "evaluation"
)

var phaseOrder = []Phase{PhaseDiscovery, PhaseDesign, PhaseDevelopment, PhaseEvaluation}

// Phases returns the phases in journey order.
func Phases() []Phase {
	out := make([]Phase, len(phaseOrder))
	copy(out, phaseOrder)
	return out
}

// Index returns the position of p in journey order, or -1 if p is not a phase.
func (p Phase) Index() int {
	for i, q := range phaseOrder {
		if q == p {
			return i
		}
	}
	return -1
}

// Valid reports whether p is one of the four phases.
func (p Phase) Valid() bool { return p.Index() >= 0 }

// Next returns the successor of p. It reports false for evaluation and for
// values outside the enumeration.
func (p Phase) Next() (Phase, bool) {
	i := p.Index()
	if i < 0 || i == len(phaseOrder)-1 {
		return "", false
	}
	return phaseOrder[i+1], true
}

// ResearchProject is a user's research journey.
type ResearchProject struct {
	ID          string `json:"id" yaml:"id"`
	OwnerID     string `json:"owner_id" yaml:"owner_id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`

	// Phase is the current phase. New projects start at discovery.
	Phase Phase `json:"phase" yaml:"phase"`

	// Progress is 0-100 and scoped to the current phase; it resets to 0 on
	// every phase transition.
	Progress int `json:"progress" yaml:"progress"`

	// Topic is a denormalized snapshot of the selected topic, not a reference.
	Topic *Topic `json:"topic,omitempty" yaml:"topic,omitempty"`

	Collaborators []string `json:"collaborators" yaml:"collaborators"`

	// Completed is set by the complete-research action from evaluation.
	// The phase itself stays evaluation.
	Completed   bool       `json:"completed" yaml:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// HasMember reports whether userID owns or collaborates on the project.
func (p ResearchProject) HasMember(userID string) bool {
	if p.OwnerID == userID {
		return true
	}
	for _, c := range p.Collaborators {
		if c == userID {
			return true
		}
	}
	return false
}

// TaskStatus is the state of a ResearchTask.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

// TaskStatuses returns the statuses in display order.
func TaskStatuses() []TaskStatus {
	return []TaskStatus{TaskTodo, TaskInProgress, TaskCompleted}
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskCompleted:
		return true
	}
	return false
}

// TaskPriority ranks a ResearchTask.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ResearchTask is a todo item under a project.
type ResearchTask struct {
	ID        string `json:"id" yaml:"id"`
	ProjectID string `json:"project_id" yaml:"project_id"`

	// Key names well-known tasks such as "select-topic". Empty for user tasks.
	Key string `json:"key,omitempty" yaml:"key,omitempty"`

	// Phase ties the task to a phase; empty means the task spans the project.
	Phase Phase `json:"phase,omitempty" yaml:"phase,omitempty"`

	Title       string       `json:"title" yaml:"title"`
	Description string       `json:"description" yaml:"description"`
	Status      TaskStatus   `json:"status" yaml:"status"`
	Priority    TaskPriority `json:"priority" yaml:"priority"`
	DueDate     *time.Time   `json:"due_date,omitempty" yaml:"due_date,omitempty"`
	Assignee    string       `json:"assignee,omitempty" yaml:"assignee,omitempty"`
	CreatedAt   time.Time    `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" yaml:"updated_at"`
}

// Topic is a catalog entry or the snapshot embedded in a project.
type Topic struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Category    string   `json:"category" yaml:"category"`
	Relevance   float64  `json:"relevance" yaml:"relevance"`
	Keywords    []string `json:"keywords" yaml:"keywords"`
	Trending    bool     `json:"trending" yaml:"trending"`

	// Display counters; not authoritative.
	Researchers int `json:"researchers" yaml:"researchers"`
	Papers      int `json:"papers" yaml:"papers"`
	Citations   int `json:"citations" yaml:"citations"`

	// Selection is present once the topic is committed onto a project.
	Selection *TopicSelection `json:"selection,omitempty" yaml:"selection,omitempty"`
}

// TopicSelection holds the user's answers to the topic questionnaire.
type TopicSelection struct {
	Reason     string    `json:"reason" yaml:"reason"`
	Interests  []string  `json:"interests" yaml:"interests"`
	Goals      []string  `json:"goals" yaml:"goals"`
	SelectedAt time.Time `json:"selected_at" yaml:"selected_at"`
}
