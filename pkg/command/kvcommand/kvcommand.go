// Package kvcommand provides a minimal single-key read/write command so
// the consensus engine can be exercised end-to-end without pulling in a
// full KV service (out of scope per the specification). It is the
// grounding example for the Command trait in pkg/command.
package kvcommand

import (
	"encoding/json"
	"fmt"

	"github.com/Kylemclean11/Xline/pkg/command"
	"github.com/google/uuid"
)

// Op is the operation a Command carries.
type Op string

const (
	OpGet Op = "get"
	OpPut Op = "put"
)

// Register is the opaque application state kvcommand operates over: a
// plain in-memory map guarded by the caller (the pipeline never calls
// Execute/AfterSync concurrently for conflicting keys).
type Register struct {
	values map[string][]byte
}

// NewRegister creates an empty register.
func NewRegister() *Register {
	return &Register{values: make(map[string][]byte)}
}

func (r *Register) get(key string) []byte { return r.values[key] }
func (r *Register) put(key string, val []byte) {
	r.values[key] = val
}

// Snapshot serializes the register's full contents, implementing
// snapshot.StateMachine for the snapshot engine (C7).
func (r *Register) Snapshot() ([]byte, error) {
	return json.Marshal(r.values)
}

// Restore replaces the register's contents from a previously taken
// snapshot, implementing snapshot.StateMachine.
func (r *Register) Restore(data []byte) error {
	values := make(map[string][]byte)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("kvcommand: restore: %w", err)
		}
	}
	r.values = values
	return nil
}

// wireForm is the JSON envelope a Command marshals to/from.
type wireForm struct {
	ID    [16]byte `json:"id"`
	Op    Op       `json:"op"`
	Key   string   `json:"key"`
	Value []byte   `json:"value,omitempty"`
}

// Command is a single-key get or put against a Register.
type Command struct {
	id    command.ID
	op    Op
	key   string
	value []byte
}

// NewPut builds a put command with a freshly generated id.
func NewPut(key string, value []byte) *Command {
	return &Command{id: command.ID(uuid.New()), op: OpPut, key: key, value: value}
}

// NewGet builds a get command with a freshly generated id.
func NewGet(key string) *Command {
	return &Command{id: command.ID(uuid.New()), op: OpGet, key: key}
}

// WithID overrides the generated id, used by tests and by clients that
// pre-generate the id for idempotent retries.
func (c *Command) WithID(id command.ID) *Command {
	c.id = id
	return c
}

func (c *Command) ID() command.ID     { return c.id }
func (c *Command) Keys() []command.Key { return []command.Key{command.Key(c.key)} }

// Execute reads the register's current value for a get and returns the
// value to be written for a put, without mutating the register — the
// write happens only in AfterSync. Conflicting commands never execute
// concurrently because the spec-pool admits only one of them to the
// fast path (slow-path commands take effect only at AfterSync).
func (c *Command) Execute(state command.State) (command.ExecResult, error) {
	reg, ok := state.(*Register)
	if !ok {
		return nil, fmt.Errorf("kvcommand: state is not *Register")
	}
	switch c.op {
	case OpGet:
		return command.ExecResult(reg.get(c.key)), nil
	case OpPut:
		// Execute previews the write result; AfterSync performs the
		// durable mutation at the committed index, per the
		// determinism invariant in §4.6(iii).
		return command.ExecResult(c.value), nil
	default:
		return nil, fmt.Errorf("kvcommand: unknown op %q", c.op)
	}
}

// AfterSync finalizes a put at the committed index; a get is a no-op
// here since its result was already produced by Execute.
func (c *Command) AfterSync(state command.State, index uint64) (command.AfterSyncResult, error) {
	reg, ok := state.(*Register)
	if !ok {
		return nil, fmt.Errorf("kvcommand: state is not *Register")
	}
	if c.op == OpPut {
		reg.put(c.key, c.value)
	}
	return command.AfterSyncResult(reg.get(c.key)), nil
}

// Marshal serializes the command to its wire form.
func (c *Command) Marshal() ([]byte, error) {
	return json.Marshal(wireForm{ID: c.id, Op: c.op, Key: c.key, Value: c.value})
}

// Decode implements command.Codec for kvcommand.
func Decode(data []byte) (command.Command, error) {
	var w wireForm
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("kvcommand: decode: %w", err)
	}
	return &Command{id: command.ID(w.ID), op: w.Op, key: w.Key, value: w.Value}, nil
}
