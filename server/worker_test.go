package server

import (
	"strings"
	"testing"
)

func TestWorkerDo(t *testing.T) {
	w := NewAnalysisWorker()
	defer w.Stop()

	result, err := w.Do(func(a *Analyzer) any {
		return 42
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if result != 42 {
		t.Errorf("Do = %v, want 42", result)
	}
}

func TestWorkerRecoversPanic(t *testing.T) {
	w := NewAnalysisWorker()
	defer w.Stop()

	_, err := w.Do(func(a *Analyzer) any {
		panic("boom")
	})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("Do error = %v, want the recovered panic", err)
	}

	// The worker goroutine must survive the panic.
	result, err := w.Do(func(a *Analyzer) any { return "alive" })
	if err != nil || result != "alive" {
		t.Errorf("Do after panic = (%v, %v), want (alive, nil)", result, err)
	}
}

func TestAnalyzerCache(t *testing.T) {
	a := NewAnalyzer()
	uri := "file:///quest.qasm"

	if a.Result(uri) != nil {
		t.Fatal("Result before Update should be nil")
	}

	result := a.Update(uri, "0:\n    ret\n")
	if result == nil || len(result.Segments) != 1 {
		t.Fatalf("Update produced %+v, want one segment", result)
	}
	if a.Result(uri) != result {
		t.Error("Result should return the cached assembly")
	}

	a.Forget(uri)
	if a.Result(uri) != nil {
		t.Error("Result after Forget should be nil")
	}
}
