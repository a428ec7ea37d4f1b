package bot

import (
	"regexp"
	"sort"
	"strings"
)

var modelPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._/\-]*$`)

// normalize turns a command word into a model identifier, Telegram commands
// can't carry hyphens so users type underscores instead
func normalize(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "_", "-")
	return strings.ToLower(name)
}

func validModel(name string) bool {
	return modelPattern.MatchString(name)
}

// Catalog maps normalized command words to model identifiers. It is built once
// at startup and only read afterwards.
type Catalog struct {
	models map[string]string
}

// NewCatalog accepts entries as "model" or "alias=model"
func NewCatalog(entries []string) Catalog {
	c := Catalog{models: make(map[string]string)}
	for _, entry := range entries {
		alias, model, found := strings.Cut(entry, "=")
		if !found {
			model = alias
		}
		alias, model = normalize(alias), normalize(model)
		if !validModel(alias) || !validModel(model) {
			continue
		}
		c.models[alias] = model
	}
	return c
}

func (c Catalog) Lookup(name string) (string, bool) {
	model, ok := c.models[normalize(name)]
	return model, ok
}

// Commands lists the shortcuts the way they are typed in chat
func (c Catalog) Commands() []string {
	commands := make([]string, 0, len(c.models))
	for alias := range c.models {
		commands = append(commands, "/"+strings.ReplaceAll(alias, "-", "_"))
	}
	sort.Strings(commands)
	return commands
}

func (c Catalog) Len() int {
	return len(c.models)
}
