package transcript

import "strings"

// FormatForStorage trims the rendered transcript, drops blank lines and
// labels any unlabelled line, alternating between the two default speakers
// starting after the last labelled one. Lines of an unknown speaker keep
// their label and leave the alternation alone.
func FormatForStorage(text string) string {
	if text == "" {
		return ""
	}
	a, b := DefaultSpeakers[0], DefaultSpeakers[1]
	current := a

	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, a+":"):
			out = append(out, line)
			current = a
			continue
		case strings.HasPrefix(line, b+":"):
			out = append(out, line)
			current = b
			continue
		case strings.HasPrefix(line, UnknownLabel+":"):
			out = append(out, line)
			continue
		}
		out = append(out, current+": "+line)
		if current == a {
			current = b
		} else {
			current = a
		}
	}
	return strings.Join(out, "\n")
}
