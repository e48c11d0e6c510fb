package models

import "testing"

func TestExecutionStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status ExecutionStatus
		want   bool
	}{
		{"running is valid", ExecutionRunning, true},
		{"completed is valid", ExecutionCompleted, true},
		{"failed is valid", ExecutionFailed, true},
		{"timeout is valid", ExecutionTimeout, true},
		{"empty string is invalid", ExecutionStatus(""), false},
		{"timed_out is invalid", ExecutionStatus("timed_out"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("ExecutionStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestExecutionStatus_Terminal(t *testing.T) {
	tests := []struct {
		status ExecutionStatus
		want   bool
	}{
		{ExecutionRunning, false},
		{ExecutionCompleted, true},
		{ExecutionFailed, true},
		{ExecutionTimeout, true},
		{ExecutionStatus("pending"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Terminal(); got != tt.want {
				t.Errorf("Terminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTokensPerSecond(t *testing.T) {
	if got := TokensPerSecond(100, 4); got != 25 {
		t.Errorf("TokensPerSecond(100, 4) = %v, want 25", got)
	}
	if got := TokensPerSecond(100, 0); got != 0 {
		t.Errorf("TokensPerSecond(100, 0) = %v, want 0", got)
	}
}
