// Package state implements the Agent Loop's per-request working set: the
// loop counter, history of LoopRecords, accumulated facts, the remaining
// task list, and the last tool results.
package state

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Juntar0/vllm-bot/internal/agentcore"
)

// State is exclusively owned by the Agent Loop for the duration of one
// request; Planner and Responder read it through the same pointer. It is
// not safe for concurrent use by more than one in-flight request.
type State struct {
	mu sync.Mutex

	LoopCount       int
	MaxLoops        int
	UserRequest     string
	History         []agentcore.LoopRecord
	Facts           []string
	RemainingTasks  []string
	LastToolResults []agentcore.ToolResult
	CreatedAt       time.Time
}

// New returns an empty State bounded by maxLoops.
func New(maxLoops int) *State {
	return &State{MaxLoops: maxLoops, CreatedAt: time.Now()}
}

// Reset wipes every field and starts a new request. Nothing is preserved
// across a Reset; this is the primary entry point the Agent Loop calls at
// the start of Run.
func (s *State) Reset(userRequest string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LoopCount = 0
	s.UserRequest = userRequest
	s.History = nil
	s.Facts = nil
	s.RemainingTasks = nil
	s.LastToolResults = nil
	s.CreatedAt = time.Now()
}

// StartLoop records the beginning of loopID.
func (s *State) StartLoop(loopID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LoopCount = loopID
}

func (s *State) recordFor(loopID int) *agentcore.LoopRecord {
	if n := len(s.History); n > 0 && s.History[n-1].LoopID == loopID {
		return &s.History[n-1]
	}
	s.History = append(s.History, agentcore.LoopRecord{LoopID: loopID, Timestamp: time.Now()})
	return &s.History[len(s.History)-1]
}

// AddPlannerOutput appends out to the LoopRecord for loopID (creating it if
// this is the first write for that id).
func (s *State) AddPlannerOutput(loopID int, out agentcore.PlannerOutput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recordFor(loopID)
	rec.PlannerOutput = &out
}

// AddToolResults appends results to the LoopRecord for loopID and updates
// LastToolResults.
func (s *State) AddToolResults(loopID int, results []agentcore.ToolResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recordFor(loopID)
	rec.ToolResults = results
	s.LastToolResults = results
}

// AddResponderOutput appends out to the LoopRecord for loopID.
func (s *State) AddResponderOutput(loopID int, out agentcore.ResponderOutput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recordFor(loopID)
	rec.ResponderOutput = &out
}

// AddFact appends fact to Facts if it is not already present.
func (s *State) AddFact(fact string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.Facts {
		if f == fact {
			return
		}
	}
	s.Facts = append(s.Facts, fact)
}

// AddTask appends task to RemainingTasks if it is not already present.
func (s *State) AddTask(task string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.RemainingTasks {
		if t == task {
			return
		}
	}
	s.RemainingTasks = append(s.RemainingTasks, task)
}

// CompleteTask removes task from RemainingTasks.
func (s *State) CompleteTask(task string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.RemainingTasks {
		if t == task {
			s.RemainingTasks = append(s.RemainingTasks[:i], s.RemainingTasks[i+1:]...)
			return
		}
	}
}

// Snapshot returns copies of the fields Planner/Responder need to read,
// taken under the lock, so callers never observe a torn write.
type Snapshot struct {
	LoopCount      int
	MaxLoops       int
	UserRequest    string
	History        []agentcore.LoopRecord
	Facts          []string
	RemainingTasks []string
}

// Snapshot takes a consistent read of the State.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		LoopCount:      s.LoopCount,
		MaxLoops:       s.MaxLoops,
		UserRequest:    s.UserRequest,
		History:        append([]agentcore.LoopRecord(nil), s.History...),
		Facts:          append([]string(nil), s.Facts...),
		RemainingTasks: append([]string(nil), s.RemainingTasks...),
	}
}

// GetHistorySummary renders the last maxLoops LoopRecords as a short
// human-readable block, for inclusion in Planner/Responder prompts.
func (s Snapshot) GetHistorySummary(maxLoops int) string {
	if len(s.History) == 0 {
		return "(no history yet)"
	}
	start := len(s.History) - maxLoops
	if start < 0 {
		start = 0
	}
	var b strings.Builder
	for _, rec := range s.History[start:] {
		fmt.Fprintf(&b, "Loop %d:\n", rec.LoopID)
		if rec.PlannerOutput != nil {
			fmt.Fprintf(&b, "  Plan: need_tools=%v, reason=%s\n", rec.PlannerOutput.NeedTools, rec.PlannerOutput.ReasonBrief)
		}
		for _, tr := range rec.ToolResults {
			status := "✓"
			if !tr.Success {
				status = "✗"
			}
			fmt.Fprintf(&b, "  %s %s\n", status, tr.ToolName)
		}
		if rec.ResponderOutput != nil {
			fmt.Fprintf(&b, "  Response summary: %s\n", rec.ResponderOutput.Summary)
		}
	}
	return b.String()
}

// ToContext renders the current state as a short human-readable block, for
// inclusion in Planner/Responder prompts.
func (s Snapshot) ToContext() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Loop %d/%d\n", s.LoopCount, s.MaxLoops)
	if len(s.Facts) > 0 {
		fmt.Fprintf(&b, "Known facts: %s\n", strings.Join(s.Facts, "; "))
	}
	if len(s.RemainingTasks) > 0 {
		fmt.Fprintf(&b, "Remaining tasks: %s\n", strings.Join(s.RemainingTasks, "; "))
	} else {
		b.WriteString("Remaining tasks: (none)\n")
	}
	return b.String()
}

// CurrentGoal returns the first remaining task, or "" if there is none.
func (s Snapshot) CurrentGoal() string {
	if len(s.RemainingTasks) == 0 {
		return ""
	}
	return s.RemainingTasks[0]
}
