package models

import "testing"

func TestIsValidQueueTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy path
		{QueueStatusPending, QueueStatusConfirmed, true},
		{QueueStatusConfirmed, QueueStatusExecuting, true},
		{QueueStatusExecuting, QueueStatusCommitted, true},
		{QueueStatusExecuting, QueueStatusFailed, true},

		// Cancellation is pre-execution only
		{QueueStatusPending, QueueStatusCancelled, true},
		{QueueStatusConfirmed, QueueStatusCancelled, true},
		{QueueStatusExecuting, QueueStatusCancelled, false},
		{QueueStatusCommitted, QueueStatusCancelled, false},

		// Invalid transitions
		{QueueStatusPending, QueueStatusExecuting, false},
		{QueueStatusPending, QueueStatusCommitted, false},
		{QueueStatusCommitted, QueueStatusExecuting, false},
		{QueueStatusFailed, QueueStatusExecuting, false},
		{QueueStatusCancelled, QueueStatusConfirmed, false},
		{"nonexistent", QueueStatusPending, false},
		{QueueStatusPending, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidQueueTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidQueueTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestAllQueueStatusesHaveTransitionEntry(t *testing.T) {
	allStatuses := []string{
		QueueStatusPending, QueueStatusConfirmed, QueueStatusExecuting,
		QueueStatusCommitted, QueueStatusFailed, QueueStatusCancelled,
	}
	for _, status := range allStatuses {
		if _, ok := ValidQueueTransitions[status]; !ok {
			t.Errorf("status %q missing from ValidQueueTransitions map", status)
		}
	}
}

func TestTerminalQueueStatuses(t *testing.T) {
	terminal := []string{QueueStatusCommitted, QueueStatusFailed, QueueStatusCancelled}
	for _, status := range terminal {
		if len(ValidQueueTransitions[status]) != 0 {
			t.Errorf("terminal status %q should have no transitions", status)
		}
		e := &QueueEntry{Status: status}
		if !e.IsTerminal() {
			t.Errorf("IsTerminal() = false for %q", status)
		}
	}
}
