package dialplan

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/routepbx/routepbx/internal/database/models"
	"github.com/routepbx/routepbx/internal/fsxml"
)

// CompiledIVR is an IVR menu expanded into dialplan form: the action list
// of the menu extension plus the linked digit-dispatch extension.
type CompiledIVR struct {
	MenuActions []Action
	Dispatch    fsxml.Extension
}

// CompileIVR expands a menu and its digit options into a branching
// condition tree. The menu extension collects exactly one digit into a
// per-menu result variable and transfers to the dispatch extension, whose
// conditions are ordered by option position (digit breaking ties) and stop
// at the first match. An empty selection (input timed out) runs the menu's
// timeout action; an unmatched digit runs its invalid action. Either
// defaults to the invalid prompt and a hangup when unconfigured.
//
// Options must already be ordered by (position, digit); duplicate digits
// are rejected at creation time, so a compiled menu never contains two
// conditions for the same digit.
func CompileIVR(menu *models.IVRMenu, options []models.IVRMenuOption, domain, callContext string) CompiledIVR {
	timeout := menu.TimeoutSeconds
	if timeout <= 0 {
		timeout = 10
	}
	maxRetries := menu.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	resultVar := fmt.Sprintf("ivr_selection_%d", menu.ID)
	dispatchDest := fmt.Sprintf("ivr_menu_%d_dispatch", menu.ID)

	menuActions := []Action{
		{Application: "answer"},
		{Application: "play_and_get_digits", Data: fmt.Sprintf(
			"1 1 %d %d # %s %s %s [0-9*#]",
			maxRetries, timeout*1000, menu.GreetingURL, menu.InvalidURL, resultVar)},
		{Application: "transfer", Data: fmt.Sprintf("%s XML %s", dispatchDest, callContext)},
	}

	dispatch := fsxml.Extension{Name: dispatchDest}
	for _, opt := range options {
		cond := fsxml.Condition{
			Field:      "${" + resultVar + "}",
			Expression: "^" + regexp.QuoteMeta(opt.Digit) + "$",
			Break:      "on-true",
		}
		for _, a := range optionActions(opt, domain, callContext) {
			cond.Actions = append(cond.Actions, fsxml.Action{Application: a.Application, Data: a.Data})
		}
		dispatch.Conditions = append(dispatch.Conditions, cond)
	}

	// No digit at all after every retry: the timeout action.
	dispatch.Conditions = append(dispatch.Conditions, fsxml.Condition{
		Field:      "${" + resultVar + "}",
		Expression: "^$",
		Break:      "on-true",
		Actions:    menuFallback(menu.TimeoutAction, menu.InvalidURL, domain, callContext),
	})

	// No digit condition matched: the invalid action.
	dispatch.Conditions = append(dispatch.Conditions, fsxml.Condition{
		Actions: menuFallback(menu.InvalidAction, menu.InvalidURL, domain, callContext),
	})

	return CompiledIVR{MenuActions: menuActions, Dispatch: dispatch}
}

// menuFallback maps a configured timeout/invalid action, written as
// "type" or "type:value", onto dispatch actions. An empty or unparseable
// spec plays the invalid prompt and hangs up.
func menuFallback(spec, invalidURL, domain, callContext string) []fsxml.Action {
	if spec != "" {
		actionType, value, _ := strings.Cut(spec, ":")
		if parsed, err := ParseIVROptionAction(actionType, value); err == nil {
			var out []fsxml.Action
			for _, a := range ivrActionSteps(parsed, domain, callContext) {
				out = append(out, fsxml.Action{Application: a.Application, Data: a.Data})
			}
			return out
		}
	}
	return []fsxml.Action{
		{Application: "playback", Data: invalidURL},
		{Application: "hangup", Data: "NORMAL_CLEARING"},
	}
}

// optionActions maps one digit option onto its dialplan actions. The parse
// step rejects unknown action types; options that fail to parse hang up.
func optionActions(opt models.IVRMenuOption, domain, callContext string) []Action {
	parsed, err := ParseIVROptionAction(opt.ActionType, opt.ActionValue)
	if err != nil {
		return []Action{{Application: "hangup", Data: "NORMAL_CLEARING"}}
	}
	return ivrActionSteps(parsed, domain, callContext)
}

// ivrActionSteps expands a parsed option action into its dialplan steps.
func ivrActionSteps(parsed IVROptionAction, domain, callContext string) []Action {
	switch a := parsed.(type) {
	case IVRToExtension:
		return []Action{{Application: "transfer", Data: fmt.Sprintf("%s XML %s", a.Extension, callContext)}}
	case IVRToSIPURI:
		return []Action{{Application: "bridge", Data: a.URI}}
	case IVRToVoicemail:
		return []Action{
			{Application: "answer"},
			{Application: "voicemail", Data: fmt.Sprintf("default %s %s", domain, a.Mailbox)},
		}
	case IVRHangup:
		return []Action{{Application: "hangup", Data: "NORMAL_CLEARING"}}
	}
	return []Action{{Application: "hangup", Data: "NORMAL_CLEARING"}}
}
