package saga

import (
	"context"
	"errors"
	"testing"
)

type alertRecorder struct {
	calls []string
}

func (a *alertRecorder) CompensationFailed(_ context.Context, workflow, step string, _ error) {
	a.calls = append(a.calls, workflow+"/"+step)
}

func TestRunExecutesStepsInOrder(t *testing.T) {
	var trace []string
	step := func(name string) Step {
		return Step{Name: name, Run: func(context.Context) error {
			trace = append(trace, name)
			return nil
		}}
	}

	exec := NewExecutor(nil)
	err := exec.Run(context.Background(), "test", []Step{step("a"), step("b"), step("c")})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(trace) != 3 || trace[0] != "a" || trace[1] != "b" || trace[2] != "c" {
		t.Fatalf("unexpected trace: %v", trace)
	}
}

func TestRunCompensatesInReverseOrder(t *testing.T) {
	var trace []string
	step := func(name string) Step {
		return Step{
			Name: name,
			Run: func(context.Context) error {
				trace = append(trace, "run:"+name)
				return nil
			},
			Compensate: func(context.Context) error {
				trace = append(trace, "undo:"+name)
				return nil
			},
		}
	}

	boom := errors.New("boom")
	steps := []Step{step("a"), step("b"), {
		Name: "c",
		Run:  func(context.Context) error { return boom },
		Compensate: func(context.Context) error {
			t.Fatal("failing step must not be compensated")
			return nil
		},
	}}

	exec := NewExecutor(nil)
	err := exec.Run(context.Background(), "test", steps)

	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected StepError, got %v", err)
	}
	if stepErr.Step != "c" || !errors.Is(err, boom) {
		t.Fatalf("unexpected step error: %v", stepErr)
	}

	want := []string{"run:a", "run:b", "undo:b", "undo:a"}
	if len(trace) != len(want) {
		t.Fatalf("unexpected trace: %v", trace)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace[%d] = %s, want %s", i, trace[i], want[i])
		}
	}
}

func TestRunSkipsNilCompensations(t *testing.T) {
	ran := false
	steps := []Step{
		{Name: "no_comp", Run: func(context.Context) error { ran = true; return nil }},
		{Name: "fail", Run: func(context.Context) error { return errors.New("boom") }},
	}

	exec := NewExecutor(nil)
	if err := exec.Run(context.Background(), "test", steps); err == nil {
		t.Fatal("expected error")
	}
	if !ran {
		t.Fatal("first step should have run")
	}
}

func TestRunEscalatesCompensationFailures(t *testing.T) {
	alerts := &alertRecorder{}
	compErr := errors.New("undo failed")

	steps := []Step{
		{
			Name:       "debit",
			Run:        func(context.Context) error { return nil },
			Compensate: func(context.Context) error { return compErr },
		},
		{Name: "activate", Run: func(context.Context) error { return errors.New("remote down") }},
	}

	exec := NewExecutor(alerts)
	err := exec.Run(context.Background(), "approve", steps)

	var ce *CompensationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CompensationError, got %v", err)
	}
	if len(ce.Failures) != 1 || ce.Failures[0].Step != "debit" {
		t.Fatalf("unexpected failures: %+v", ce.Failures)
	}

	var se *StepError
	if !errors.As(err, &se) || se.Step != "activate" {
		t.Fatalf("expected joined StepError for activate, got %v", err)
	}

	if len(alerts.calls) != 1 || alerts.calls[0] != "approve/debit" {
		t.Fatalf("expected alert for approve/debit, got %v", alerts.calls)
	}
}

func TestRunCompensatesAfterContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	compensated := false
	steps := []Step{
		{
			Name:       "debit",
			Run:        func(context.Context) error { return nil },
			Compensate: func(context.Context) error { compensated = true; return nil },
		},
		{
			Name: "activate",
			Run: func(context.Context) error {
				cancel()
				return context.Canceled
			},
		},
	}

	exec := NewExecutor(nil)
	if err := exec.Run(ctx, "approve", steps); err == nil {
		t.Fatal("expected error")
	}
	if !compensated {
		t.Fatal("compensation must run even after the caller context is canceled")
	}
}
