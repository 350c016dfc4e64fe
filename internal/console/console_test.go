package console_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/profile-watch/pwatch/internal/console"
	"github.com/profile-watch/pwatch/internal/snapshot"
)

func fixedClock() time.Time {
	return time.Date(2026, time.October, 17, 14, 5, 9, 0, time.UTC)
}

func TestConsoleLines(t *testing.T) {
	testCases := []struct {
		name             string
		write            func(output *console.Console)
		expectedContains []string
	}{
		{
			name:             "banner",
			write:            func(output *console.Console) { output.Banner("Profile Watch") },
			expectedContains: []string{"Roblox Profile Watcher", "By Profile Watch", "ONLY sent whilst"},
		},
		{
			name: "tracking panel",
			write: func(output *console.Console) {
				output.Tracking(snapshot.Profile{DisplayName: "Neo", UserName: "neo"})
			},
			expectedContains: []string{"Now tracking Neo (@neo)"},
		},
		{
			name:             "change detected",
			write:            func(output *console.Console) { output.ChangeDetected(snapshot.Delta{}) },
			expectedContains: []string{"Change detected at 14:05:09!"},
		},
		{
			name:             "no changes",
			write:            func(output *console.Console) { output.NoChanges() },
			expectedContains: []string{"14:05:09 — No changes."},
		},
		{
			name:             "watching",
			write:            func(output *console.Console) { output.Watching("1", 30*time.Second) },
			expectedContains: []string{"Watching Roblox user ID: 1 every 30s"},
		},
		{
			name:             "webhook skipped",
			write:            func(output *console.Console) { output.WebhookSkipped("webhook.txt not found") },
			expectedContains: []string{"webhook.txt not found; Discord webhook messages will be skipped."},
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			var buffer bytes.Buffer
			testCase.write(console.New(&buffer, fixedClock))
			for _, expected := range testCase.expectedContains {
				if !strings.Contains(buffer.String(), expected) {
					t.Fatalf("output %q does not contain %q", buffer.String(), expected)
				}
			}
		})
	}
}

func TestPromptTarget(t *testing.T) {
	testCases := []struct {
		name           string
		input          string
		expectedTarget string
		expectedError  error
	}{
		{name: "trims the answer", input: "  neo \n", expectedTarget: "neo"},
		{name: "accepts input without newline", input: "12345", expectedTarget: "12345"},
		{name: "rejects blank input", input: "   \n", expectedError: console.ErrEmptyTarget},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			var buffer bytes.Buffer
			target, err := console.New(&buffer, fixedClock).PromptTarget(strings.NewReader(testCase.input))
			if testCase.expectedError != nil {
				if !errors.Is(err, testCase.expectedError) {
					t.Fatalf("expected %v, got %v", testCase.expectedError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if target != testCase.expectedTarget {
				t.Fatalf("target = %q, want %q", target, testCase.expectedTarget)
			}
			if !strings.Contains(buffer.String(), "Enter Roblox username or user ID") {
				t.Fatalf("expected prompt to be written, got %q", buffer.String())
			}
		})
	}
}
