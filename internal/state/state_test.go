package state

import (
	"testing"

	"github.com/Juntar0/vllm-bot/internal/agentcore"
)

func TestUpsertByLoopID(t *testing.T) {
	s := New(5)
	s.Reset("do something")
	s.StartLoop(1)
	s.AddPlannerOutput(1, agentcore.PlannerOutput{NeedTools: true})
	s.AddToolResults(1, []agentcore.ToolResult{{ToolName: "read_file", Success: true}})
	s.AddResponderOutput(1, agentcore.ResponderOutput{Response: "done"})

	snap := s.Snapshot()
	if len(snap.History) != 1 {
		t.Fatalf("expected exactly one LoopRecord, got %d", len(snap.History))
	}
	rec := snap.History[0]
	if rec.PlannerOutput == nil || rec.ToolResults == nil || rec.ResponderOutput == nil {
		t.Fatal("expected all three sub-fields filled on the single record")
	}
}

func TestDedupFactsAndTasks(t *testing.T) {
	s := New(5)
	s.AddFact("fact a")
	s.AddFact("fact a")
	s.AddFact("fact b")
	s.AddTask("task 1")
	s.AddTask("task 1")

	snap := s.Snapshot()
	if len(snap.Facts) != 2 {
		t.Fatalf("expected 2 deduped facts, got %d", len(snap.Facts))
	}
	if len(snap.RemainingTasks) != 1 {
		t.Fatalf("expected 1 deduped task, got %d", len(snap.RemainingTasks))
	}
}

func TestCompleteTask(t *testing.T) {
	s := New(5)
	s.AddTask("task 1")
	s.AddTask("task 2")
	s.CompleteTask("task 1")

	snap := s.Snapshot()
	if len(snap.RemainingTasks) != 1 || snap.RemainingTasks[0] != "task 2" {
		t.Fatalf("expected only task 2 remaining, got %v", snap.RemainingTasks)
	}
}

func TestResetClearsEverything(t *testing.T) {
	s := New(5)
	s.AddFact("fact")
	s.AddTask("task")
	s.StartLoop(3)
	s.Reset("new request")

	snap := s.Snapshot()
	if snap.LoopCount != 0 || len(snap.Facts) != 0 || len(snap.RemainingTasks) != 0 || snap.UserRequest != "new request" {
		t.Fatalf("expected full reset, got %+v", snap)
	}
}
