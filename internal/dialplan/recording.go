package dialplan

import "strings"

// RecordingActions builds the standard call-recording action set for a
// target label: a deterministic per-call filename (set and exported so it
// survives transfers), codec preferences exported with nolocal: scoping so
// they reach the far leg, and the record_session itself.
func RecordingActions(label, codecString string) []Action {
	path := "${recordings_dir}/${uuid}-" + safeLabel(label) + ".wav"

	actions := []Action{
		{Application: "set", Data: "record_file=" + path},
		{Application: "export", Data: "record_file=" + path},
	}
	if codecString != "" {
		actions = append(actions, Action{
			Application: "export",
			Data:        "nolocal:absolute_codec_string=" + codecString,
		})
	}
	actions = append(actions,
		Action{Application: "export", Data: "recording_follow_transfer=true"},
		Action{Application: "record_session", Data: path},
	)
	return actions
}

// hasRecordingAction reports whether an action list already records the
// session; rule-defined recording suppresses auto-injection.
func hasRecordingAction(actions []Action) bool {
	for _, a := range actions {
		if a.Application == "record_session" {
			return true
		}
	}
	return false
}

// safeLabel reduces a target label to filesystem-safe characters.
func safeLabel(label string) string {
	var b strings.Builder
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "call"
	}
	return b.String()
}
