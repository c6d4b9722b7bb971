package nfs

import (
	"bytes"
	"fmt"

	"github.com/wisnuc/appifi/internal/utils"
)

// Action is one slot of a conflict Policy. The zero value means "no action"
// and covers both the undefined and null wire values.
type Action string

const (
	ActionNone    Action = ""
	ActionSkip    Action = "skip"
	ActionReplace Action = "replace"
	ActionRename  Action = "rename"
)

func (a Action) valid() bool {
	switch a {
	case ActionNone, ActionSkip, ActionReplace, ActionRename:
		return true
	}
	return false
}

// Policy is the [samePolicy, diffPolicy] pair. Same applies when the existing
// target has the same type as the one being created or moved; Diff applies on
// a type mismatch.
type Policy struct {
	Same Action
	Diff Action
}

// NoPolicy fails on every conflict.
var NoPolicy = Policy{}

// ParsePolicy decodes the wire form: null, or an array of at most two
// elements each null or one of "skip", "replace", "rename".
func ParsePolicy(data []byte) (Policy, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return NoPolicy, nil
	}
	var slots []*string
	if err := utils.JSONUnmarshal(data, &slots); err != nil {
		return NoPolicy, fmt.Errorf("policy must be an array: %w", err)
	}
	if len(slots) > 2 {
		return NoPolicy, fmt.Errorf("policy must have at most 2 elements, got %d", len(slots))
	}
	var actions [2]Action
	for i, s := range slots {
		if s == nil {
			continue
		}
		a := Action(*s)
		if a == ActionNone || !a.valid() {
			return NoPolicy, fmt.Errorf("invalid policy value %q", *s)
		}
		actions[i] = a
	}
	return Policy{Same: actions[0], Diff: actions[1]}, nil
}

func (p *Policy) UnmarshalJSON(data []byte) error {
	parsed, err := ParsePolicy(data)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p Policy) MarshalJSON() ([]byte, error) {
	return utils.JSONMarshal([2]*string{p.Same.ptr(), p.Diff.ptr()})
}

func (a Action) ptr() *string {
	if a == ActionNone {
		return nil
	}
	s := string(a)
	return &s
}

// Resolved reports which policy branch fired: [same, diff]. Both are false
// when no conflict existed.
type Resolved [2]bool

// Resolution is the single decision taken for one conflict.
type Resolution int

const (
	ResolveFail Resolution = iota
	ResolveSkip
	ResolveReplace
	ResolveRename
)

func (r Resolution) String() string {
	switch r {
	case ResolveSkip:
		return "skip"
	case ResolveReplace:
		return "replace"
	case ResolveRename:
		return "rename"
	}
	return "fail"
}

// Resolve picks the resolution for a conflict once. same reports whether the
// existing target has the expected type.
func (p Policy) Resolve(same bool) (Resolution, Resolved) {
	action := p.Diff
	if same {
		action = p.Same
	}
	flags := Resolved{same, !same}
	switch action {
	case ActionSkip:
		return ResolveSkip, flags
	case ActionReplace:
		return ResolveReplace, flags
	case ActionRename:
		return ResolveRename, flags
	}
	return ResolveFail, flags
}
