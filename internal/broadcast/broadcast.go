// Package broadcast pushes live page-update instructions to connected
// clients. Delivery is at-most-once: clients that are offline or slow miss
// instructions and recover by reloading, so the hub keeps no backlog.
package broadcast

// Instruction tells a connected client how to update its view.
type Instruction string

const (
	// InstructionRefresh tells the client to reload the named stream's view.
	InstructionRefresh Instruction = "refresh"
	// InstructionReplace swaps the target element with the given content.
	InstructionReplace Instruction = "replace"
	// InstructionPrepend inserts the content before the target's children.
	InstructionPrepend Instruction = "prepend"
	// InstructionRemove deletes the target element.
	InstructionRemove Instruction = "remove"
)

func (i Instruction) String() string {
	return string(i)
}

func (i Instruction) IsValid() bool {
	switch i {
	case InstructionRefresh, InstructionReplace, InstructionPrepend, InstructionRemove:
		return true
	}
	return false
}

// Message is one instruction delivered to stream subscribers. Stream is the
// fully scoped name (account/...); the scoping prefix is applied by the
// dispatcher and never by callers.
type Message struct {
	Stream      string      `json:"stream"`
	Instruction Instruction `json:"instruction"`
	Target      string      `json:"target,omitempty"`
	Content     string      `json:"content,omitempty"`
}
