package engine

import (
	"maps"
	"strings"
)

// Enforcement wrapper for Reader to apply duplicate element handling and max
// depth checks while the document is being read.

// EnforceOptions controls runtime enforcement behavior.
type EnforceOptions struct {
	OnDuplicate DuplicateStrictness
	MaxDepth    int
	// IssueSink is an optional callback to receive lightweight issues.
	// If nil, issues are not reported unless they are fatal.
	IssueSink func(SimpleIssue)
}

type dupFrame struct {
	kind Kind
	keys map[string]struct{}
	path string
}

// WrapWithEnforcement returns a Reader that enforces the duplicate element
// policy and the maximum nesting depth.
func WrapWithEnforcement(inner Reader, opt EnforceOptions) Reader {
	if opt.OnDuplicate == DupIgnore && opt.MaxDepth <= 0 {
		return inner
	}
	return &enforcingReader{Reader: inner, opt: opt}
}

type enforcingReader struct {
	Reader
	opt   EnforceOptions
	stack []dupFrame
	path  string
}

type enforcingBookmark struct {
	inner Bookmark
	stack []dupFrame
	path  string
}

func (e *enforcingReader) report(si SimpleIssue) {
	if e.opt.IssueSink != nil {
		e.opt.IssueSink(si)
	}
}

func (e *enforcingReader) push(kind Kind) error {
	e.stack = append(e.stack, dupFrame{kind: kind, keys: map[string]struct{}{}, path: e.path})
	if e.opt.MaxDepth > 0 && len(e.stack) > e.opt.MaxDepth {
		si := SimpleIssue{Code: CodeMaxDepth, Path: normalizeIssuePath(e.path), Message: "max depth exceeded"}
		e.report(si)
		return IssueError{si}
	}
	return nil
}

func (e *enforcingReader) pop() {
	if n := len(e.stack); n > 0 {
		e.path = e.stack[n-1].path
		e.stack = e.stack[:n-1]
	}
}

func (e *enforcingReader) ReadStartDocument() error {
	if err := e.Reader.ReadStartDocument(); err != nil {
		return err
	}
	return e.push(KindDocument)
}

func (e *enforcingReader) ReadStartArray() error {
	if err := e.Reader.ReadStartArray(); err != nil {
		return err
	}
	return e.push(KindArray)
}

func (e *enforcingReader) ReadEndDocument() error {
	if err := e.Reader.ReadEndDocument(); err != nil {
		return err
	}
	e.pop()
	return nil
}

func (e *enforcingReader) ReadEndArray() error {
	if err := e.Reader.ReadEndArray(); err != nil {
		return err
	}
	e.pop()
	return nil
}

func (e *enforcingReader) ReadType() (Kind, error) {
	k, err := e.Reader.ReadType()
	if err != nil || k == KindEndOfDocument {
		return k, err
	}
	n := len(e.stack)
	if n == 0 {
		return k, nil
	}
	top := &e.stack[n-1]
	if top.kind != KindDocument {
		e.path = top.path
		return k, nil
	}
	name, err := e.Reader.ReadName()
	if err != nil {
		return k, err
	}
	e.path = joinJSONPointer(top.path, name)
	if e.opt.OnDuplicate != DupIgnore {
		if _, ok := top.keys[name]; ok {
			si := SimpleIssue{Code: CodeDuplicateElement, Path: e.path, Message: "element '" + name + "' duplicated"}
			e.report(si)
			if e.opt.OnDuplicate == DupError {
				return k, IssueError{si}
			}
		}
		top.keys[name] = struct{}{}
	}
	return k, nil
}

func (e *enforcingReader) Bookmark() Bookmark {
	st := make([]dupFrame, len(e.stack))
	for i, f := range e.stack {
		f.keys = maps.Clone(f.keys)
		st[i] = f
	}
	return enforcingBookmark{inner: e.Reader.Bookmark(), stack: st, path: e.path}
}

func (e *enforcingReader) ReturnToBookmark(b Bookmark) {
	bm, ok := b.(enforcingBookmark)
	if !ok {
		return
	}
	e.Reader.ReturnToBookmark(bm.inner)
	e.stack = e.stack[:0]
	for _, f := range bm.stack {
		f.keys = maps.Clone(f.keys)
		e.stack = append(e.stack, f)
	}
	e.path = bm.path
}

func normalizeIssuePath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

var jsonPointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

func escapeJSONPointerToken(s string) string {
	return jsonPointerEscaper.Replace(s)
}

func joinJSONPointer(base, token string) string {
	if base == "" {
		return "/" + escapeJSONPointerToken(token)
	}
	return base + "/" + escapeJSONPointerToken(token)
}
