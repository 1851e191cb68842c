// Package console implements the interactive shell: a read-dispatch-respond
// loop over typed operations against the class registry and the storage
// engine.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/stayforge/hearth/pkg/types"
)

// Prompt is echoed before every input line.
const Prompt = "(hbnb) "

// Diagnostic strings. Validation failures render as these and the session
// continues.
const (
	msgMissingClass   = "** class name missing **"
	msgUnknownClass   = "** class doesn't exist **"
	msgMissingID      = "** instance id missing **"
	msgNoInstance     = "** no instance found **"
	msgMissingAttr    = "** attribute name missing **"
	msgMissingValue   = "** value missing **"
	msgMalformedValue = "** malformed value **"
)

// Console reads lines, resolves verb + target kind + arguments, and invokes
// the registry and store. All operations run on the caller's goroutine; the
// only blocking point is reading the next line.
type Console struct {
	store    types.Store
	registry *types.Registry
	in       io.Reader
	out      io.Writer
}

// New builds a Console reading from in and writing to out.
func New(store types.Store, registry *types.Registry, in io.Reader, out io.Writer) *Console {
	return &Console{store: store, registry: registry, in: in, out: out}
}

// Run executes the read-dispatch loop until quit or end-of-input. Empty
// lines re-prompt silently. Only a scanner failure is returned; command
// failures are rendered and the loop continues.
func (c *Console) Run() error {
	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, Prompt)
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if quit := c.dispatch(line); quit {
			return nil
		}
	}
}

// dispatch runs one line and reports whether the loop should terminate.
func (c *Console) dispatch(line string) bool {
	cmd, err := parseLine(line)
	if err != nil {
		c.unknown(line)
		return false
	}

	switch cmd.verb {
	case "quit", "EOF":
		return true
	case "create":
		c.cmdCreate(cmd.args)
	case "show":
		c.cmdShow(cmd.args)
	case "destroy":
		c.cmdDestroy(cmd.args)
	case "all":
		c.cmdAll(cmd.args)
	case "update":
		c.cmdUpdate(cmd)
	case "count":
		c.cmdCount(cmd.args)
	default:
		c.unknown(line)
	}
	return false
}

func (c *Console) unknown(line string) {
	fmt.Fprintf(c.out, "*** Unknown syntax: %s\n", line)
}

// resolveKind validates the kind argument and prints the matching diagnostic
// when it fails.
func (c *Console) resolveKind(args []string) (*types.KindSpec, bool) {
	if len(args) == 0 {
		fmt.Fprintln(c.out, msgMissingClass)
		return nil, false
	}
	spec, err := c.registry.Resolve(args[0])
	if err != nil {
		fmt.Fprintln(c.out, msgUnknownClass)
		return nil, false
	}
	return spec, true
}

// lookup validates the id argument and resolves the entity, printing the
// matching diagnostic when either fails.
func (c *Console) lookup(kind string, args []string) (*types.Entity, bool) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, msgMissingID)
		return nil, false
	}
	e, err := c.store.Get(kind, args[1])
	if err != nil {
		fmt.Fprintln(c.out, msgNoInstance)
		return nil, false
	}
	return e, true
}

// persist mirrors the table to the durable document, surfacing a failure
// without corrupting the in-memory state.
func (c *Console) persist() {
	if err := c.store.Persist(); err != nil {
		fmt.Fprintf(c.out, "persist failed: %v\n", err)
	}
}

func (c *Console) cmdCreate(args []string) {
	spec, ok := c.resolveKind(args)
	if !ok {
		return
	}
	e := spec.New()
	if err := c.store.Put(e); err != nil {
		fmt.Fprintf(c.out, "put failed: %v\n", err)
		return
	}
	c.persist()
	fmt.Fprintln(c.out, e.ID)
}

func (c *Console) cmdShow(args []string) {
	spec, ok := c.resolveKind(args)
	if !ok {
		return
	}
	e, ok := c.lookup(spec.Name, args)
	if !ok {
		return
	}
	fmt.Fprintln(c.out, e.Describe())
}

func (c *Console) cmdDestroy(args []string) {
	spec, ok := c.resolveKind(args)
	if !ok {
		return
	}
	if len(args) < 2 {
		fmt.Fprintln(c.out, msgMissingID)
		return
	}
	removed, err := c.store.Remove(spec.Name, args[1])
	if err != nil {
		fmt.Fprintf(c.out, "remove failed: %v\n", err)
		return
	}
	if !removed {
		fmt.Fprintln(c.out, msgNoInstance)
		return
	}
	c.persist()
}

func (c *Console) cmdAll(args []string) {
	kind := ""
	if len(args) > 0 {
		spec, err := c.registry.Resolve(args[0])
		if err != nil {
			fmt.Fprintln(c.out, msgUnknownClass)
			return
		}
		kind = spec.Name
	}
	entities, err := c.store.All(kind)
	if err != nil {
		fmt.Fprintf(c.out, "list failed: %v\n", err)
		return
	}
	for _, e := range entities {
		fmt.Fprintln(c.out, e.Describe())
	}
}

func (c *Console) cmdUpdate(cmd command) {
	spec, ok := c.resolveKind(cmd.args)
	if !ok {
		return
	}
	e, ok := c.lookup(spec.Name, cmd.args)
	if !ok {
		return
	}

	pairs := cmd.pairs
	if len(pairs) == 0 {
		if len(cmd.args) < 3 {
			fmt.Fprintln(c.out, msgMissingAttr)
			return
		}
		fmt.Fprintln(c.out, msgMissingValue)
		return
	}

	// Coerce every declared value up front so a malformed pair leaves the
	// entity untouched.
	for _, p := range pairs {
		vt, declared := spec.AttrType(p.name)
		if !declared {
			continue
		}
		if _, err := types.Coerce(vt, p.value); err != nil {
			fmt.Fprintln(c.out, msgMalformedValue)
			return
		}
	}

	for _, p := range pairs {
		if err := e.Set(p.name, p.value); err != nil {
			fmt.Fprintln(c.out, msgMalformedValue)
			return
		}
	}
	e.Touch()
	if err := c.store.Put(e); err != nil {
		fmt.Fprintf(c.out, "put failed: %v\n", err)
		return
	}
	c.persist()
}

func (c *Console) cmdCount(args []string) {
	spec, ok := c.resolveKind(args)
	if !ok {
		return
	}
	n, err := c.store.Count(spec.Name)
	if err != nil {
		fmt.Fprintf(c.out, "count failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.out, n)
}
