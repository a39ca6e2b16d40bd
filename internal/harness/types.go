package harness

// TraceEvent records one client operation performed by a scenario.
type TraceEvent struct {
	Seq       int     `json:"seq"`
	Op        string  `json:"op"` // exec, exec_many, select, select_one, commit, create_table, create_index
	Statement string  `json:"statement,omitempty"`
	Params    []any   `json:"params,omitempty"`
	Items     [][]any `json:"items,omitempty"`
	Outcome   string  `json:"outcome,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success.
	// True if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains every operation in execution order.
	// Used for trace assertions and golden comparison.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event, assigning the next sequence number.
func (r *Result) AddTrace(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
