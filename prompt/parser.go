// Package prompt splits user text into positive and negative prompt parts.
package prompt

import "strings"

const negativePrefix = "-"

type Prompt struct {
	Positive string
	Negative string
}

// Parse splits text on delimiter. Fragments starting with "-" go to the negative
// prompt without the prefix, everything else to the positive one. An empty or
// whitespace delimiter splits on any run of whitespace.
func Parse(text, delimiter string) Prompt {
	var fragments []string
	sep := strings.TrimSpace(delimiter)
	if sep == "" {
		fragments = strings.Fields(text)
	} else {
		fragments = strings.Split(text, sep)
	}

	var positive, negative []string
	for _, fragment := range fragments {
		fragment = strings.TrimSpace(fragment)
		if strings.HasPrefix(fragment, negativePrefix) {
			fragment = strings.TrimSpace(strings.TrimPrefix(fragment, negativePrefix))
			if fragment != "" {
				negative = append(negative, fragment)
			}
			continue
		}
		if fragment != "" {
			positive = append(positive, fragment)
		}
	}

	return Prompt{
		Positive: join(positive, sep),
		Negative: join(negative, sep),
	}
}

func join(parts []string, sep string) string {
	glue := " "
	if sep != "" {
		glue = sep + " "
	}
	s := strings.Join(parts, glue)
	s = strings.TrimSpace(s)
	if sep != "" {
		s = strings.TrimRight(s, sep+" ")
	}
	return s
}
