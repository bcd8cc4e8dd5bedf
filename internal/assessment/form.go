package assessment

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/Skufu/neurorisk/internal/catalog"
)

// FieldFeedback is returned for every keystroke.
type FieldFeedback struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	Malformed bool   `json:"malformed"`
	Hint      string `json:"hint,omitempty"`
	Warning   string `json:"warning,omitempty"`
}

// FieldState is the display state of one input.
type FieldState struct {
	Value     string `json:"value"`
	Malformed bool   `json:"malformed"`
	Warning   string `json:"warning,omitempty"`
	Error     string `json:"error,omitempty"`
}

// FormState is a snapshot of a form for rendering.
type FormState struct {
	Test    string                `json:"test"`
	Fields  map[string]FieldState `json:"fields"`
	Loading bool                  `json:"loading"`
	Result  *RiskAssessment       `json:"result,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// Form owns the input of one screen instance. Fields stay editable while a
// submission is in flight; only one submission runs at a time.
type Form struct {
	test     *catalog.Test
	engine   *Engine
	inflight *semaphore.Weighted

	mu         sync.Mutex
	values     map[string]string
	malformed  map[string]bool
	warnings   map[string]string
	fieldErrs  ValidationResult
	result     *RiskAssessment
	lastErr    string
	loading    bool
	closed     bool
	generation uint64
}

func NewForm(test *catalog.Test, engine *Engine) *Form {
	f := &Form{
		test:     test,
		engine:   engine,
		inflight: semaphore.NewWeighted(1),
	}
	f.clear()
	return f
}

func (f *Form) clear() {
	f.values = make(map[string]string, len(f.test.Fields))
	for _, spec := range f.test.Fields {
		f.values[spec.Key] = ""
	}
	f.malformed = map[string]bool{}
	f.warnings = map[string]string{}
	f.fieldErrs = ValidationResult{}
	f.result = nil
	f.lastErr = ""
}

// Test returns the test this form collects input for.
func (f *Form) Test() *catalog.Test { return f.test }

// Change applies the accumulated text of one input.
func (f *Form) Change(key, raw string) (FieldFeedback, error) {
	spec, ok := f.test.Field(key)
	if !ok {
		return FieldFeedback{}, ErrUnknownField
	}

	value, malformed := Sanitize(raw)
	warning := LiveWarning(spec, value)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return FieldFeedback{}, ErrFormClosed
	}

	f.values[key] = value
	f.malformed[key] = malformed
	if warning != "" {
		f.warnings[key] = warning
	} else {
		delete(f.warnings, key)
	}
	delete(f.fieldErrs, key)

	fb := FieldFeedback{Key: key, Value: value, Malformed: malformed, Warning: warning}
	if malformed {
		fb.Hint = MalformedMessage
	}
	return fb, nil
}

// Submit validates the current input and scores it. A call made while
// another is in flight returns ErrSubmitInFlight without contacting the
// model. A result arriving after Reset or Close is discarded and Submit
// returns ErrFormReset or ErrFormClosed instead.
func (f *Form) Submit(ctx context.Context) (*RiskAssessment, error) {
	if !f.inflight.TryAcquire(1) {
		return nil, ErrSubmitInFlight
	}
	defer f.inflight.Release(1)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrFormClosed
	}
	snapshot := make(map[string]string, len(f.values))
	for k, v := range f.values {
		snapshot[k] = v
	}
	gen := f.generation

	values, err := Prepare(f.test, snapshot)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			f.fieldErrs = verr.Fields
		}
		f.result = nil
		f.lastErr = UserMessage(err)
		f.mu.Unlock()
		return nil, err
	}
	f.fieldErrs = ValidationResult{}
	f.loading = true
	f.mu.Unlock()

	ra, err := f.engine.ComputeRisk(ctx, f.test, values)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.loading = false
	if f.closed {
		return nil, ErrFormClosed
	}
	if f.generation != gen {
		return nil, ErrFormReset
	}
	if err != nil {
		f.result = nil
		f.lastErr = UserMessage(err)
		return nil, err
	}
	f.result = ra
	f.lastErr = ra.RemoteError
	return ra, nil
}

// Reset empties every field and drops the latest result.
func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generation++
	f.clear()
}

// Close dismisses the form. Later calls fail with ErrFormClosed.
func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.generation++
}

// State returns a copy of the form's display state.
func (f *Form) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()

	fields := make(map[string]FieldState, len(f.values))
	for _, spec := range f.test.Fields {
		fields[spec.Key] = FieldState{
			Value:     f.values[spec.Key],
			Malformed: f.malformed[spec.Key],
			Warning:   f.warnings[spec.Key],
			Error:     f.fieldErrs[spec.Key],
		}
	}
	return FormState{
		Test:    f.test.ID,
		Fields:  fields,
		Loading: f.loading,
		Result:  f.result,
		Error:   f.lastErr,
	}
}
