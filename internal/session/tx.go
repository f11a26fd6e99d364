package session

import "github.com/edirooss/respd/internal/resp"

// QueuedCommand is one command buffered between MULTI and EXEC/DISCARD.
type QueuedCommand struct {
	Name string
	Args []resp.Value
}

// Transaction buffers commands issued after MULTI until EXEC or DISCARD.
// There is no cross-key atomicity: EXEC simply runs each queued command
// through the ordinary dispatcher in order, so concurrent commands from
// other connections may interleave between them. That divergence from
// real transaction isolation is a deliberate, documented scope cut.
type Transaction struct {
	Queue  []QueuedCommand
	Dirty  bool // set when a queued command failed to parse/validate; forces EXEC to abort
	DirtyErr error
}

func NewTransaction() *Transaction {
	return &Transaction{}
}

func (t *Transaction) Enqueue(name string, args []resp.Value) {
	t.Queue = append(t.Queue, QueuedCommand{Name: name, Args: args})
}
