package console

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stayforge/hearth/internal/filestore"
	"github.com/stayforge/hearth/pkg/types"
)

// session wires a console over a file store in a throwaway data directory so
// tests can feed scripted input and assert on the transcript.
type session struct {
	store    *filestore.Store
	registry *types.Registry
}

func newSession(t *testing.T) *session {
	t.Helper()
	registry := types.NewDefaultRegistry()
	store := filestore.New(registry)
	cfg := types.Config{Backend: types.BackendFile, DataDir: t.TempDir()}
	if err := store.Attach(cfg); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	t.Cleanup(func() { store.Detach() })
	return &session{store: store, registry: registry}
}

// run feeds input to a fresh console over the session's store and returns the
// transcript.
func (s *session) run(t *testing.T, input string) string {
	t.Helper()
	var out bytes.Buffer
	c := New(s.store, s.registry, strings.NewReader(input), &out)
	if err := c.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return out.String()
}

// outputLines strips prompts from a transcript and returns the response lines.
func outputLines(transcript string) []string {
	var lines []string
	for _, line := range strings.Split(transcript, "\n") {
		for strings.HasPrefix(line, Prompt) {
			line = strings.TrimPrefix(line, Prompt)
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// seed creates one entity directly in the store and returns it.
func (s *session) seed(t *testing.T, kind string) *types.Entity {
	t.Helper()
	spec, err := s.registry.Resolve(kind)
	if err != nil {
		t.Fatalf("resolve %s: %v", kind, err)
	}
	e := spec.New()
	if err := s.store.Put(e); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	return e
}

func TestQuit(t *testing.T) {
	s := newSession(t)
	out := s.run(t, "quit\n")
	if out != Prompt {
		t.Errorf("transcript = %q, want a single prompt", out)
	}
}

func TestEOFCommand(t *testing.T) {
	s := newSession(t)
	out := s.run(t, "EOF\n")
	if out != Prompt {
		t.Errorf("transcript = %q, want a single prompt", out)
	}
}

func TestEndOfInputTerminates(t *testing.T) {
	s := newSession(t)
	out := s.run(t, "")
	if out != Prompt {
		t.Errorf("transcript = %q, want a single prompt", out)
	}
}

func TestEmptyLinesReprompt(t *testing.T) {
	s := newSession(t)
	out := s.run(t, "\n   \n\nquit\n")
	if out != strings.Repeat(Prompt, 4) {
		t.Errorf("transcript = %q, want four bare prompts", out)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newSession(t)

	lines := outputLines(s.run(t, "create User\n"))
	if len(lines) != 1 {
		t.Fatalf("create output = %v, want a single id line", lines)
	}
	id := lines[0]

	lines = outputLines(s.run(t, "show User "+id+"\n"))
	if len(lines) != 1 {
		t.Fatalf("show output = %v, want one line", lines)
	}
	if !strings.HasPrefix(lines[0], "[User] ("+id+")") {
		t.Errorf("show = %q, want [User] (%s) prefix", lines[0], id)
	}
	if !strings.Contains(lines[0], "created_at") || !strings.Contains(lines[0], "updated_at") {
		t.Errorf("show = %q, want timestamps rendered", lines[0])
	}

	out := s.run(t, "update User "+id+" first_name \"Betty\"\n")
	if got := outputLines(out); len(got) != 0 {
		t.Fatalf("update output = %v, want silence on success", got)
	}
	lines = outputLines(s.run(t, "show User "+id+"\n"))
	if !strings.Contains(lines[0], `first_name: "Betty"`) {
		t.Errorf("show after update = %q, want first_name Betty", lines[0])
	}

	s.run(t, "create User\n")
	lines = outputLines(s.run(t, "count User\n"))
	if len(lines) != 1 || lines[0] != "2" {
		t.Errorf("count = %v, want [2]", lines)
	}

	s.run(t, "destroy User "+id+"\n")
	lines = outputLines(s.run(t, "show User "+id+"\n"))
	if len(lines) != 1 || lines[0] != "** no instance found **" {
		t.Errorf("show after destroy = %v, want no-instance diagnostic", lines)
	}
}

func TestDiagnostics(t *testing.T) {
	s := newSession(t)
	e := s.seed(t, "User")

	tests := []struct {
		name string
		line string
		want string
	}{
		{"create missing class", "create", "** class name missing **"},
		{"create unknown class", "create MyModel", "** class doesn't exist **"},
		{"show missing class", "show", "** class name missing **"},
		{"show missing id", "show User", "** instance id missing **"},
		{"show unknown id", "show User 121212", "** no instance found **"},
		{"destroy missing id", "destroy User", "** instance id missing **"},
		{"destroy unknown id", "destroy User 121212", "** no instance found **"},
		{"all unknown class", "all MyModel", "** class doesn't exist **"},
		{"update missing class", "update", "** class name missing **"},
		{"update missing id", "update User", "** instance id missing **"},
		{"update unknown id", "update User 121212", "** no instance found **"},
		{"update missing attribute", "update User " + e.ID, "** attribute name missing **"},
		{"update missing value", "update User " + e.ID + " first_name", "** value missing **"},
		{"count missing class", "count", "** class name missing **"},
		{"count unknown class", "count MyModel", "** class doesn't exist **"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lines := outputLines(s.run(t, tc.line+"\n"))
			if len(lines) != 1 || lines[0] != tc.want {
				t.Errorf("%q -> %v, want [%s]", tc.line, lines, tc.want)
			}
		})
	}
}

func TestUnknownSyntax(t *testing.T) {
	s := newSession(t)
	lines := outputLines(s.run(t, "frobnicate User\n"))
	if len(lines) != 1 || lines[0] != "*** Unknown syntax: frobnicate User" {
		t.Errorf("got %v, want the unknown-syntax diagnostic echoing the line", lines)
	}
}

func TestUpdateQuotedValueWithSpaces(t *testing.T) {
	s := newSession(t)
	e := s.seed(t, "Amenity")

	s.run(t, "update Amenity "+e.ID+" name \"Wi-Fi and breakfast\"\n")
	if e.Attrs["name"] != "Wi-Fi and breakfast" {
		t.Errorf("name = %v, want the full quoted phrase", e.Attrs["name"])
	}
}

func TestUpdateCoercesDeclaredValue(t *testing.T) {
	s := newSession(t)
	e := s.seed(t, "Place")

	s.run(t, "update Place "+e.ID+" number_rooms \"4\"\n")
	if e.Attrs["number_rooms"] != int64(4) {
		t.Errorf("number_rooms = %v (%T), want int64(4)", e.Attrs["number_rooms"], e.Attrs["number_rooms"])
	}

	s.run(t, "update Place "+e.ID+" latitude \"37.77\"\n")
	if e.Attrs["latitude"] != 37.77 {
		t.Errorf("latitude = %v, want 37.77", e.Attrs["latitude"])
	}
}

func TestUpdateMalformedValue(t *testing.T) {
	s := newSession(t)
	e := s.seed(t, "Place")
	before := e.UpdatedAt

	lines := outputLines(s.run(t, "update Place "+e.ID+" number_rooms \"lots\"\n"))
	if len(lines) != 1 || lines[0] != "** malformed value **" {
		t.Errorf("got %v, want the malformed-value diagnostic", lines)
	}
	if _, ok := e.Attrs["number_rooms"]; ok && e.Attrs["number_rooms"] != int64(0) {
		t.Errorf("number_rooms mutated by a rejected update: %v", e.Attrs["number_rooms"])
	}
	if !e.UpdatedAt.Equal(before) {
		t.Error("updated_at advanced by a rejected update")
	}
}

func TestUpdateProtectedFieldsSkipped(t *testing.T) {
	s := newSession(t)
	e := s.seed(t, "User")
	id, created := e.ID, e.CreatedAt

	s.run(t, "update User "+id+" id hijacked\n")
	s.run(t, "update User "+id+" created_at 1999-01-01T00:00:00Z\n")

	if e.ID != id {
		t.Errorf("id changed to %s", e.ID)
	}
	if !e.CreatedAt.Equal(created) {
		t.Errorf("created_at changed to %v", e.CreatedAt)
	}
}

func TestAll(t *testing.T) {
	s := newSession(t)
	s.seed(t, "State")
	s.seed(t, "State")
	s.seed(t, "City")

	lines := outputLines(s.run(t, "all State\n"))
	if len(lines) != 2 {
		t.Fatalf("all State = %d lines, want 2", len(lines))
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "[State] (") {
			t.Errorf("line %q is not a State description", line)
		}
	}

	lines = outputLines(s.run(t, "all\n"))
	if len(lines) != 3 {
		t.Errorf("all = %d lines, want 3", len(lines))
	}
}

func TestDottedSyntaxEquivalence(t *testing.T) {
	s := newSession(t)
	e := s.seed(t, "User")

	spaced := s.run(t, "show User "+e.ID+"\n")
	dotted := s.run(t, "User.show(\""+e.ID+"\")\n")
	if spaced != dotted {
		t.Errorf("transcripts differ:\nspaced: %q\ndotted: %q", spaced, dotted)
	}

	spaced = s.run(t, "count User\n")
	dotted = s.run(t, "User.count()\n")
	if spaced != dotted {
		t.Errorf("count transcripts differ:\nspaced: %q\ndotted: %q", spaced, dotted)
	}

	spaced = s.run(t, "all User\n")
	dotted = s.run(t, "User.all()\n")
	if spaced != dotted {
		t.Errorf("all transcripts differ:\nspaced: %q\ndotted: %q", spaced, dotted)
	}
}

func TestDottedUpdate(t *testing.T) {
	s := newSession(t)
	e := s.seed(t, "User")

	s.run(t, "User.update(\""+e.ID+"\", \"last_name\", \"Holberton\")\n")
	if e.Attrs["last_name"] != "Holberton" {
		t.Errorf("last_name = %v, want Holberton", e.Attrs["last_name"])
	}
}

func TestDottedUpdateMapping(t *testing.T) {
	s := newSession(t)
	e := s.seed(t, "Place")

	s.run(t, "Place.update(\""+e.ID+"\", {'name': \"Lovely place\", 'number_rooms': 3, 'latitude': 37.77})\n")
	if e.Attrs["name"] != "Lovely place" {
		t.Errorf("name = %v, want Lovely place", e.Attrs["name"])
	}
	if e.Attrs["number_rooms"] != int64(3) {
		t.Errorf("number_rooms = %v (%T), want int64(3)", e.Attrs["number_rooms"], e.Attrs["number_rooms"])
	}
	if e.Attrs["latitude"] != 37.77 {
		t.Errorf("latitude = %v, want 37.77", e.Attrs["latitude"])
	}
}

func TestDottedUpdateMappingMalformedPairRejectsAll(t *testing.T) {
	s := newSession(t)
	e := s.seed(t, "Place")

	lines := outputLines(s.run(t, "Place.update(\""+e.ID+"\", {'name': \"Oops\", 'number_rooms': \"lots\"})\n"))
	if len(lines) != 1 || lines[0] != "** malformed value **" {
		t.Fatalf("got %v, want the malformed-value diagnostic", lines)
	}
	if e.Attrs["name"] == "Oops" {
		t.Error("earlier pair applied despite a later malformed one")
	}
}

func TestDottedDestroy(t *testing.T) {
	s := newSession(t)
	e := s.seed(t, "Review")

	s.run(t, "Review.destroy(\""+e.ID+"\")\n")
	if n, _ := s.store.Count("Review"); n != 0 {
		t.Errorf("Count = %d after dotted destroy, want 0", n)
	}
}

func TestDottedUnknownClass(t *testing.T) {
	s := newSession(t)
	lines := outputLines(s.run(t, "MyModel.count()\n"))
	if len(lines) != 1 || lines[0] != "** class doesn't exist **" {
		t.Errorf("got %v, want the unknown-class diagnostic", lines)
	}
}

func TestCreatePersistsImmediately(t *testing.T) {
	s := newSession(t)

	lines := outputLines(s.run(t, "create City\n"))
	if len(lines) != 1 {
		t.Fatalf("create output = %v", lines)
	}
	id := lines[0]

	// A reload from disk sees the entity without an explicit save step.
	if err := s.store.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if _, err := s.store.Get("City", id); err != nil {
		t.Errorf("entity not durable after create: %v", err)
	}
}

func TestPersistFailureSurfacedAndSessionContinues(t *testing.T) {
	s := newSession(t)

	// A NaN float has no JSON encoding, so every persist of this table fails.
	p := s.seed(t, "Place")
	if err := p.Set("latitude", math.NaN()); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	lines := outputLines(s.run(t, "create User\ncount User\n"))
	if len(lines) != 3 {
		t.Fatalf("transcript lines = %v, want failure diagnostic, id, count", lines)
	}
	if !strings.HasPrefix(lines[0], "persist failed:") {
		t.Errorf("line = %q, want the persist-failed diagnostic", lines[0])
	}

	// The entity was still created in memory and the loop kept going.
	if lines[2] != "1" {
		t.Errorf("count after failed persist = %q, want 1", lines[2])
	}
	if _, err := s.store.Get("User", lines[1]); err != nil {
		t.Errorf("created entity missing from the table: %v", err)
	}
}

func TestDestroyPersistsImmediately(t *testing.T) {
	s := newSession(t)
	e := s.seed(t, "City")
	s.run(t, "create City\n") // forces a persist that includes the seed
	s.run(t, "destroy City "+e.ID+"\n")

	if err := s.store.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if _, err := s.store.Get("City", e.ID); err == nil {
		t.Error("destroyed entity still present after reload")
	}
}
