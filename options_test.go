package winevent

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	r, err := New(WithRunner(emptyRunner()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if got := r.Providers(); len(got) != 1 || got[0] != "Microsoft-Windows-DNS-Client" {
		t.Errorf("Providers() = %v, want [Microsoft-Windows-DNS-Client]", got)
	}
	if r.MaxEvents() != 100 {
		t.Errorf("MaxEvents() = %d, want 100", r.MaxEvents())
	}
	if r.Frequency() != 10*time.Second {
		t.Errorf("Frequency() = %v, want 10s", r.Frequency())
	}
	w := r.Window()
	if !w.Start.Equal(w.End) {
		t.Errorf("default window = %v, want empty window", w)
	}
	if r.State() != "idle" {
		t.Errorf("State() = %q, want idle", r.State())
	}
}

func TestNew_DefaultRunner(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if r.runner == nil {
		t.Error("runner should default to the PowerShell runner")
	}
}

func TestNew_DefaultWindowUsesClock(t *testing.T) {
	fixed := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

	r, err := New(WithRunner(emptyRunner()), WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	w := r.Window()
	if !w.Start.Equal(fixed) || !w.End.Equal(fixed) {
		t.Errorf("Window() = %v, want [%v, %v)", w, fixed, fixed)
	}
}

func TestWithProviders(t *testing.T) {
	tests := []struct {
		name      string
		providers []string
		wantErr   string
	}{
		{name: "single", providers: []string{"Application Error"}},
		{name: "several", providers: []string{"A", "B", "C"}},
		{name: "none", providers: nil, wantErr: "at least one provider"},
		{name: "empty name", providers: []string{"A", ""}, wantErr: "provider 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(WithRunner(emptyRunner()), WithProviders(tt.providers...))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("New() error = %v, want error containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			got := r.Providers()
			if len(got) != len(tt.providers) {
				t.Fatalf("Providers() = %v, want %v", got, tt.providers)
			}
			for i := range got {
				if got[i] != tt.providers[i] {
					t.Errorf("Providers()[%d] = %q, want %q", i, got[i], tt.providers[i])
				}
			}
		})
	}
}

func TestWithProviders_CopiesInput(t *testing.T) {
	in := []string{"A", "B"}
	r, err := New(WithRunner(emptyRunner()), WithProviders(in...))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	in[0] = "changed"
	if r.Providers()[0] != "A" {
		t.Error("Reader should not share the caller's provider slice")
	}

	out := r.Providers()
	out[1] = "changed"
	if r.Providers()[1] != "B" {
		t.Error("Providers() should return a copy")
	}
}

func TestWithMaxEvents(t *testing.T) {
	if _, err := New(WithMaxEvents(0)); err == nil {
		t.Error("WithMaxEvents(0) expected error, got nil")
	}
	if _, err := New(WithMaxEvents(-5)); err == nil {
		t.Error("WithMaxEvents(-5) expected error, got nil")
	}

	r, err := New(WithRunner(emptyRunner()), WithMaxEvents(25))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if r.MaxEvents() != 25 {
		t.Errorf("MaxEvents() = %d, want 25", r.MaxEvents())
	}
}

func TestWithFrequency(t *testing.T) {
	tests := []struct {
		name    string
		in      time.Duration
		want    time.Duration
		wantErr bool
	}{
		{name: "seconds", in: 2 * time.Second, want: 2 * time.Second},
		{name: "truncated to ms", in: 1500*time.Microsecond + 3, want: time.Millisecond},
		{name: "zero", in: 0, wantErr: true},
		{name: "sub-millisecond", in: 999 * time.Microsecond, wantErr: true},
		{name: "negative", in: -time.Second, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(WithRunner(emptyRunner()), WithFrequency(tt.in))
			if tt.wantErr {
				if err == nil {
					t.Errorf("WithFrequency(%v) expected error, got nil", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if r.Frequency() != tt.want {
				t.Errorf("Frequency() = %v, want %v", r.Frequency(), tt.want)
			}
		})
	}
}

func TestWithWindow(t *testing.T) {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Minute)

	r, err := New(WithRunner(emptyRunner()), WithWindow(start, end))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if w := r.Window(); !w.Start.Equal(start) || !w.End.Equal(end) {
		t.Errorf("Window() = %v, want [%v, %v)", w, start, end)
	}

	if _, err := New(WithWindow(end, start)); err == nil {
		t.Error("WithWindow(end, start) expected error, got nil")
	}
}

func TestWithRunner_Nil(t *testing.T) {
	if _, err := New(WithRunner(nil)); err == nil {
		t.Error("WithRunner(nil) expected error, got nil")
	}
}

func TestWithClock_Nil(t *testing.T) {
	if _, err := New(WithClock(nil)); err == nil {
		t.Error("WithClock(nil) expected error, got nil")
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	r, err := New(WithRunner(emptyRunner()), WithLogger(logger), WithName("dns"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if r.logger != logger {
		t.Error("WithLogger() did not set the logger")
	}
	if r.Name() != "dns" {
		t.Errorf("Name() = %q, want dns", r.Name())
	}
}

func TestWithLogger_Nil(t *testing.T) {
	if _, err := New(WithLogger(nil)); err == nil {
		t.Error("WithLogger(nil) expected error, got nil")
	}
}

func TestNew_DefaultLogger(t *testing.T) {
	r, err := New(WithRunner(emptyRunner()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if r.logger != slog.Default() {
		t.Error("logger should default to slog.Default()")
	}
}

func TestWithCycleCallback_NilIgnored(t *testing.T) {
	r, err := New(WithRunner(emptyRunner()), WithCycleCallback(nil))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(r.cycleCallbacks) != 0 {
		t.Errorf("len(cycleCallbacks) = %d, want 0", len(r.cycleCallbacks))
	}
}
