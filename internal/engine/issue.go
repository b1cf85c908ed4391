package engine

import "fmt"

// DuplicateStrictness controls duplicate element handling in the enforcement wrapper.
type DuplicateStrictness int

const (
	DupIgnore DuplicateStrictness = iota
	DupWarn
	DupError
)

// Issue codes produced by the cursor layer.
const (
	CodeShape            = "shape"
	CodeDuplicateElement = "duplicate_element"
	CodeMaxDepth         = "max_depth"
	CodeCursorState      = "cursor_state"
)

// SimpleIssue is a minimal issue representation used by the cursor layer.
type SimpleIssue struct {
	Code    string
	Path    string
	Message string
}

// IssueError is a lightweight error carrying a SimpleIssue.
type IssueError struct{ SimpleIssue }

func (e IssueError) Error() string { return e.SimpleIssue.Message }
func (e IssueError) Code() string  { return e.SimpleIssue.Code }

// KindError reports a read of the wrong wire kind.
type KindError struct {
	Op       string
	Expected Kind
	Got      Kind
}

func (e *KindError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Op, e.Expected, e.Got)
}

func (e *KindError) Code() string { return CodeShape }

// StateError reports a cursor or sink call that is invalid in the current position.
type StateError struct {
	Op     string
	Detail string
}

func (e *StateError) Error() string { return e.Op + ": " + e.Detail }
func (e *StateError) Code() string  { return CodeCursorState }
