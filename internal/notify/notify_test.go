package notify_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/aliskhannn/nano-editor/internal/export"
	"github.com/aliskhannn/nano-editor/internal/notify"
	"github.com/aliskhannn/nano-editor/internal/testutil"
)

func TestCenter_NotifySummary(t *testing.T) {
	tests := []struct {
		name    string
		summary export.Summary
		level   string
		message string
	}{
		{name: "all ok", summary: export.Summary{Total: 3, Succeeded: 3}, level: notify.LevelSuccess, message: "Export finished: 3 succeeded"},
		{name: "partial", summary: export.Summary{Total: 3, Succeeded: 2, Failed: 1}, level: notify.LevelWarning, message: "Export finished: 2 succeeded, 1 failed"},
		{name: "all failed", summary: export.Summary{Total: 2, Failed: 2}, level: notify.LevelError, message: "Export finished: 0 succeeded, 2 failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := notify.New(10, testutil.FixedClock())
			c.Notify(context.Background(), tt.summary)

			list := c.List()
			if len(list) != 1 {
				t.Fatalf("len(List()) = %d, want 1", len(list))
			}
			if list[0].Level != tt.level || list[0].Message != tt.message {
				t.Errorf("notification = %+v", list[0])
			}
			if !list[0].CreatedAt.Equal(testutil.FixedClock().Now()) {
				t.Errorf("CreatedAt = %v", list[0].CreatedAt)
			}
		})
	}
}

func TestCenter_RingAndOrder(t *testing.T) {
	c := notify.New(3, nil)
	for i := 1; i <= 5; i++ {
		c.Push(notify.LevelInfo, "n", fmt.Sprint(i))
	}

	list := c.List()
	if len(list) != 3 {
		t.Fatalf("len(List()) = %d, want 3", len(list))
	}
	for i, want := range []string{"5", "4", "3"} {
		if list[i].Message != want {
			t.Errorf("List()[%d] = %q, want %q", i, list[i].Message, want)
		}
	}

	if !c.Dismiss(list[1].ID) {
		t.Error("Dismiss() = false for an existing notification")
	}
	if c.Dismiss(list[1].ID) {
		t.Error("Dismiss() = true for a removed notification")
	}
	if len(c.List()) != 2 {
		t.Errorf("len(List()) = %d after dismiss, want 2", len(c.List()))
	}

	c.Clear()
	if len(c.List()) != 0 {
		t.Error("Clear() left notifications")
	}
}
