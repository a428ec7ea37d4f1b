package bot

import (
	"strings"
	"unicode"
)

const commandPrefix = "/"

type CommandKind int

const (
	CommandGenerate CommandKind = iota
	CommandHelp
	CommandTop
	CommandSelectModel
	CommandRejected
	CommandUnknown
)

func (k CommandKind) String() string {
	switch k {
	case CommandGenerate:
		return "generate"
	case CommandHelp:
		return "help"
	case CommandTop:
		return "top"
	case CommandSelectModel:
		return "select-model"
	case CommandRejected:
		return "rejected"
	case CommandUnknown:
		return "unknown"
	}
	return "invalid"
}

// Command is the result of classifying one inbound text
type Command struct {
	Kind  CommandKind
	Model string
	Text  string
}

var helpTriggers = map[string]struct{}{
	"help":  {},
	"start": {},
}

// Classify decides what a message is. It has no side effects.
func Classify(text string, catalog Catalog, strict bool) Command {
	trimmed := strings.TrimSpace(text)
	if _, ok := helpTriggers[strings.ToLower(trimmed)]; ok {
		return Command{Kind: CommandHelp}
	}
	if !strings.HasPrefix(trimmed, commandPrefix) {
		return Command{Kind: CommandGenerate, Text: text}
	}

	word, args := splitCommand(trimmed)
	switch word {
	case "help", "start":
		return Command{Kind: CommandHelp}
	case "top":
		return Command{Kind: CommandTop}
	case "model":
		return selection(args, catalog)
	}

	if model, ok := catalog.Lookup(word); ok {
		return Command{Kind: CommandSelectModel, Model: model}
	}
	if strict {
		return Command{Kind: CommandUnknown, Text: trimmed}
	}
	return selection(word, catalog)
}

func selection(name string, catalog Catalog) Command {
	if model, ok := catalog.Lookup(name); ok {
		return Command{Kind: CommandSelectModel, Model: model}
	}
	model := normalize(name)
	if !validModel(model) {
		return Command{Kind: CommandRejected, Text: strings.TrimSpace(name)}
	}
	return Command{Kind: CommandSelectModel, Model: model}
}

// splitCommand returns the lowercased command word without the prefix and a
// trailing @botname, plus the rest of the text
func splitCommand(text string) (string, string) {
	text = strings.TrimPrefix(text, commandPrefix)
	word, args := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		word, args = text[:i], text[i:]
	}
	word, _, _ = strings.Cut(word, "@")
	return strings.ToLower(word), strings.TrimSpace(args)
}
