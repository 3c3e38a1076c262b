package server

import (
	"fmt"

	"github.com/seliria/questfile/pkg/bytecode"
)

// analysisRequest represents a unit of work to be executed on the
// analysis goroutine.
type analysisRequest struct {
	fn   func(*Analyzer) any
	done chan analysisResult
}

// analysisResult holds the return value from an analysis operation.
type analysisResult struct {
	value any
	err   error
}

// Analyzer caches the latest assembly pass for every open document, so
// diagnostics, hover and completion all read one shared result instead
// of reassembling the source per request.
type Analyzer struct {
	results map[string]*bytecode.AssemblyResult
}

// NewAnalyzer creates an empty analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{results: make(map[string]*bytecode.AssemblyResult)}
}

// Update reassembles a document and caches the result.
func (a *Analyzer) Update(uri, text string) *bytecode.AssemblyResult {
	result := bytecode.Assemble(text)
	a.results[uri] = result
	return result
}

// Result returns the cached assembly result for a document, or nil if
// the document was never assembled.
func (a *Analyzer) Result(uri string) *bytecode.AssemblyResult {
	return a.results[uri]
}

// Forget drops the cached result for a closed document.
func (a *Analyzer) Forget(uri string) {
	delete(a.results, uri)
}

// AnalysisWorker serializes all analyzer access through a single
// goroutine. LSP handlers run on jsonrpc goroutines; routing them
// through the worker keeps the result cache free of data races.
type AnalysisWorker struct {
	analyzer *Analyzer
	requests chan analysisRequest
	quit     chan struct{}
}

// NewAnalysisWorker creates an AnalysisWorker and starts the processing
// goroutine.
func NewAnalysisWorker() *AnalysisWorker {
	w := &AnalysisWorker{
		analyzer: NewAnalyzer(),
		requests: make(chan analysisRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes analysis requests sequentially on a dedicated goroutine.
func (w *AnalysisWorker) loop() {
	for {
		select {
		case req := <-w.requests:
			result := w.execute(req.fn)
			req.done <- result
		case <-w.quit:
			return
		}
	}
}

// execute runs a function on the analyzer, recovering from panics.
func (w *AnalysisWorker) execute(fn func(*Analyzer) any) analysisResult {
	var result analysisResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.err = fmt.Errorf("%v", r)
			}
		}()
		result.value = fn(w.analyzer)
	}()
	return result
}

// Do submits a function for execution on the analysis goroutine and
// blocks until it completes. Returns the result and any error
// (including panics).
func (w *AnalysisWorker) Do(fn func(*Analyzer) any) (any, error) {
	req := analysisRequest{
		fn:   fn,
		done: make(chan analysisResult, 1),
	}
	w.requests <- req
	result := <-req.done
	return result.value, result.err
}

// Stop shuts down the worker goroutine.
func (w *AnalysisWorker) Stop() {
	close(w.quit)
}
