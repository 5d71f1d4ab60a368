package signalkkit

import "strings"

const vesselsPrefix = "vessels."

// ResolvePath computes the two store keys for one delta value. The effective
// raw path is valuePath when present, else updatePath; ok is false when
// neither is set. Servers emit paths sometimes context-qualified and
// sometimes bare, so every value ends up addressable by both forms.
func ResolvePath(context, updatePath, valuePath string) (PathRef, bool) {
	raw := valuePath
	if raw == "" {
		raw = updatePath
	}
	if raw == "" {
		return PathRef{}, false
	}

	absolute := raw
	if context != "" && !strings.HasPrefix(raw, context+".") {
		absolute = context + "." + raw
	}

	relative := absolute
	switch {
	case context != "" && strings.HasPrefix(absolute, context+"."):
		relative = absolute[len(context)+1:]
	case strings.HasPrefix(absolute, vesselsPrefix):
		// no context to strip; drop the "vessels.<id>." qualifier instead
		if rest := absolute[len(vesselsPrefix):]; strings.Contains(rest, ".") {
			relative = rest[strings.Index(rest, ".")+1:]
		}
	}
	return PathRef{Absolute: absolute, Relative: relative}, true
}
