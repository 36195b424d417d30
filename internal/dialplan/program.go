// Package dialplan resolves call destinations into the action programs the
// switch executes, and answers directory authentication queries.
package dialplan

import (
	"regexp"

	"github.com/routepbx/routepbx/internal/fsxml"
)

// Action is one (application, data) instruction of an action program.
type Action struct {
	Application string
	Data        string
}

// Program is an ordered action program for a single call leg. Extra holds
// additional extensions contributed by IVR digit dispatch.
type Program struct {
	Context     string
	Name        string
	Destination string
	Actions     []Action
	Extra       []fsxml.Extension
}

// Add appends an action to the program.
func (p *Program) Add(application, data string) {
	p.Actions = append(p.Actions, Action{Application: application, Data: data})
}

// AddAll appends a batch of actions in order.
func (p *Program) AddAll(actions []Action) {
	p.Actions = append(p.Actions, actions...)
}

// Document serializes the program into the dialplan response document. The
// main extension matches the destination number exactly; IVR dispatch
// extensions follow it inside the same context.
func (p *Program) Document() *fsxml.Document {
	cond := fsxml.Condition{
		Field:      "destination_number",
		Expression: "^" + regexp.QuoteMeta(p.Destination) + "$",
	}
	for _, a := range p.Actions {
		cond.Actions = append(cond.Actions, fsxml.Action{
			Application: a.Application,
			Data:        a.Data,
		})
	}

	extensions := []fsxml.Extension{{
		Name:       p.Name,
		Conditions: []fsxml.Condition{cond},
	}}
	extensions = append(extensions, p.Extra...)

	doc := fsxml.NewDocument()
	doc.Sections = append(doc.Sections, fsxml.Section{
		Name: "dialplan",
		Context: &fsxml.Context{
			Name:       p.Context,
			Extensions: extensions,
		},
	})
	return doc
}

// ProgramActions extracts the ordered (application, data) list from the main
// extension of a dialplan document. Used by tests to verify round-trips.
func ProgramActions(doc *fsxml.Document) []Action {
	var actions []Action
	for _, s := range doc.Sections {
		if s.Context == nil || len(s.Context.Extensions) == 0 {
			continue
		}
		for _, c := range s.Context.Extensions[0].Conditions {
			for _, a := range c.Actions {
				actions = append(actions, Action{Application: a.Application, Data: a.Data})
			}
		}
	}
	return actions
}

