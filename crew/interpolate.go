package crew

import "strings"

// Interpolate replaces {name} placeholders with values from inputs.
// Placeholders without a matching input are left intact, so downstream
// text that legitimately contains braces survives the pass.
func Interpolate(s string, inputs map[string]string) string {
	if len(inputs) == 0 || !strings.Contains(s, "{") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for {
		open := strings.IndexByte(s, '{')
		if open < 0 {
			b.WriteString(s)
			return b.String()
		}
		close := strings.IndexByte(s[open:], '}')
		if close < 0 {
			b.WriteString(s)
			return b.String()
		}
		close += open

		name := s[open+1 : close]
		if value, ok := inputs[name]; ok {
			b.WriteString(s[:open])
			b.WriteString(value)
			s = s[close+1:]
		} else {
			// Keep the brace and rescan right after it so a later
			// placeholder inside the span is still found.
			b.WriteString(s[:open+1])
			s = s[open+1:]
		}
	}
}

// InterpolateRole applies inputs to every free-text role field.
func InterpolateRole(role Role, inputs map[string]string) Role {
	role.Name = Interpolate(role.Name, inputs)
	role.Goal = Interpolate(role.Goal, inputs)
	role.Backstory = Interpolate(role.Backstory, inputs)
	return role
}

// InterpolateTask applies inputs to a task's description and expected
// output.
func InterpolateTask(task CrewTask, inputs map[string]string) CrewTask {
	task.Description = Interpolate(task.Description, inputs)
	task.Expected = Interpolate(task.Expected, inputs)
	return task
}
