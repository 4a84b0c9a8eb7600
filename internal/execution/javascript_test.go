package execution

import (
	"context"
	"strings"
	"testing"
	"time"

	"codesync/pkg/interfaces"
)

func TestJavaScriptExecutor_InterfaceCompliance(t *testing.T) {
	var _ interfaces.Executor = &JavaScriptExecutor{}
}

func TestJavaScriptExecutor_Run(t *testing.T) {
	tests := []struct {
		name       string
		source     string
		wantStdout []string
		wantError  string
	}{
		{
			name:       "top level return",
			source:     "return 2+2",
			wantStdout: []string{"Return value: 4"},
		},
		{
			name:       "completion value",
			source:     "const a = 20; a + 22",
			wantStdout: []string{"Return value: 42"},
		},
		{
			name:       "console levels",
			source:     `console.log("hello", 1); console.warn("careful"); console.error("bad"); console.info("fyi")`,
			wantStdout: []string{"hello 1\n", "WARNING: careful\n", "ERROR: bad\n", "fyi\n"},
		},
		{
			name:       "objects are rendered as json",
			source:     `console.log({a: 1, b: [1, 2]})`,
			wantStdout: []string{"\"a\": 1", "\"b\": ["},
		},
		{
			name:       "thrown error keeps only the message",
			source:     `console.log("before"); throw new Error("boom")`,
			wantStdout: []string{"before\n"},
			wantError:  "boom",
		},
		{
			name:      "syntax error",
			source:    "function (",
			wantError: "SyntaxError",
		},
		{
			name:      "no host bindings",
			source:    `require("fs")`,
			wantError: "require",
		},
	}

	executor := NewJavaScriptExecutor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := executor.Run(context.Background(), tt.source, time.Second)

			for _, want := range tt.wantStdout {
				if !strings.Contains(result.StdoutText, want) {
					t.Errorf("Expected stdout to contain %q, got %q", want, result.StdoutText)
				}
			}

			if tt.wantError == "" {
				if result.HasError() {
					t.Errorf("Expected no error, got %q", *result.ErrorText)
				}
				return
			}
			if !result.HasError() || !strings.Contains(*result.ErrorText, tt.wantError) {
				t.Errorf("Expected error containing %q, got %+v", tt.wantError, result.ErrorText)
			}
		})
	}
}

func TestJavaScriptExecutor_UndefinedCompletionIsNotReported(t *testing.T) {
	result := NewJavaScriptExecutor().Run(context.Background(), `console.log("x")`, time.Second)

	if strings.Contains(result.StdoutText, "Return value") {
		t.Errorf("Undefined completion must not be reported, got %q", result.StdoutText)
	}
}

func TestJavaScriptExecutor_InfiniteLoopTimesOut(t *testing.T) {
	start := time.Now()
	result := NewJavaScriptExecutor().Run(context.Background(), "while (true) {}", 200*time.Millisecond)

	if time.Since(start) > 3*time.Second {
		t.Fatal("Run did not respect its budget")
	}
	if !result.HasError() || !strings.Contains(*result.ErrorText, "timed out") {
		t.Errorf("Expected timeout error, got %+v", result)
	}
}

func TestJavaScriptExecutor_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	result := NewJavaScriptExecutor().Run(ctx, "for (;;) {}", 10*time.Second)

	if !result.HasError() {
		t.Error("Expected an error after cancellation")
	}
}

func TestJavaScriptExecutor_OutputLimitInterruptsRun(t *testing.T) {
	executor := NewJavaScriptExecutor()
	executor.SetOutputLimit(1024)

	start := time.Now()
	result := executor.Run(context.Background(), `const s = "x".repeat(100); while (true) { console.log(s) }`, 5*time.Second)

	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("Run took %v, output limit did not stop it", elapsed)
	}
	if !result.HasError() || !strings.Contains(*result.ErrorText, ErrOutputLimit.Error()) {
		t.Errorf("Expected output limit error, got %+v", result.ErrorText)
	}
	if len(result.StdoutText) > 1024+len(truncationMarker) {
		t.Errorf("Transcript not capped: %d bytes", len(result.StdoutText))
	}
	if !strings.HasSuffix(result.StdoutText, truncationMarker) {
		t.Error("Truncated transcript must end with the marker")
	}
}

func TestJavaScriptExecutor_Timers(t *testing.T) {
	tests := []struct {
		name       string
		source     string
		wantStdout string
		wantError  string
	}{
		{
			name:       "callbacks run after the program",
			source:     `setTimeout(() => console.log("later"), 0); console.log("now")`,
			wantStdout: "now\nlater\n",
		},
		{
			name:       "due order then scheduling order",
			source:     `setTimeout(() => console.log("b"), 20); setTimeout(() => console.log("a"), 10); setTimeout(() => console.log("c"), 20)`,
			wantStdout: "a\nb\nc\n",
		},
		{
			name:       "extra arguments are passed",
			source:     `setTimeout((x, y) => console.log(x + y), 5, 40, 2)`,
			wantStdout: "42\n",
		},
		{
			name:       "cleared timeout never fires",
			source:     `const id = setTimeout(() => console.log("no"), 5); clearTimeout(id); console.log("done")`,
			wantStdout: "done\n",
		},
		{
			name:       "interval until cleared",
			source:     `let n = 0; const id = setInterval(() => { n++; console.log(n); if (n === 3) clearInterval(id) }, 10)`,
			wantStdout: "1\n2\n3\n",
		},
		{
			name:      "callback must be a function",
			source:    `setTimeout("console.log(1)", 5)`,
			wantError: "callback",
		},
		{
			name:      "errors in callbacks are reported",
			source:    `setTimeout(() => { throw new Error("late boom") }, 5)`,
			wantError: "late boom",
		},
	}

	executor := NewJavaScriptExecutor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := executor.Run(context.Background(), tt.source, time.Second)

			if tt.wantError != "" {
				if !result.HasError() || !strings.Contains(*result.ErrorText, tt.wantError) {
					t.Errorf("Expected error containing %q, got %+v", tt.wantError, result.ErrorText)
				}
				return
			}
			if result.HasError() {
				t.Fatalf("Unexpected error: %s", *result.ErrorText)
			}
			if result.StdoutText != tt.wantStdout {
				t.Errorf("Expected %q, got %q", tt.wantStdout, result.StdoutText)
			}
		})
	}
}

func TestJavaScriptExecutor_UnclearedIntervalTimesOut(t *testing.T) {
	result := NewJavaScriptExecutor().Run(context.Background(), `setInterval(() => {}, 1)`, 200*time.Millisecond)

	if !result.HasError() || !strings.Contains(*result.ErrorText, "timed out") {
		t.Errorf("Expected timeout error, got %+v", result.ErrorText)
	}
}
