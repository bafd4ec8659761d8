package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

const (
	copyFlagTypeName            = "copy"
	invalidCopyFlagValueMessage = "invalid copy flag value '%s'"
	packCommandName             = "pack"
	mapCommandName              = "map"
)

// copyFlagCommandNames lists the words that open a subcommand context, so a
// bare --copy ahead of them stays positional instead of swallowing the name.
var copyFlagCommandNames = map[string]struct{}{
	packCommandName: {},
	packAlias:       {},
	mapCommandName:  {},
	mapAlias:        {},
	modelsUse:       {},
	configUse:       {},
}

func isCopyFlagCommand(argument string) bool {
	normalized := strings.ToLower(strings.TrimSpace(argument))
	_, known := copyFlagCommandNames[normalized]
	return known
}

// interpretCopyFlagLiteral reads a copy flag argument; an empty value means
// the bare flag and counts as true.
func interpretCopyFlagLiteral(input string) (bool, bool) {
	if strings.TrimSpace(input) == "" {
		return true, true
	}
	return interpretBooleanLiteral(input)
}

type copyFlagValue struct {
	target *bool
}

func (value *copyFlagValue) Set(input string) error {
	if value == nil || value.target == nil {
		return fmt.Errorf(invalidCopyFlagValueMessage, input)
	}
	booleanValue, recognized := interpretCopyFlagLiteral(input)
	if !recognized {
		return fmt.Errorf(invalidCopyFlagValueMessage, input)
	}
	*value.target = booleanValue
	return nil
}

func (value *copyFlagValue) String() string {
	if value == nil || value.target == nil || !*value.target {
		return booleanFlagFalseLiteral
	}
	return booleanFlagTrueLiteral
}

func (value *copyFlagValue) Type() string {
	return copyFlagTypeName
}

func registerCopyFlag(flagSet *pflag.FlagSet, target *bool) {
	if flagSet == nil || target == nil {
		return
	}
	*target = false
	flagSet.Var(&copyFlagValue{target: target}, copyFlagName, copyFlagDescription)
	if lookup := flagSet.Lookup(copyFlagName); lookup != nil {
		lookup.NoOptDefVal = booleanFlagTrueLiteral
	}
}

// normalizeCopyFlagArguments binds a literal following a bare --copy to the
// flag, except when that literal names a subcommand still to come.
func normalizeCopyFlagArguments(arguments []string) []string {
	if len(arguments) == 0 {
		return arguments
	}
	normalized := make([]string, 0, len(arguments))
	index := 0
	commandContext := false
	positionalOnly := false
	for index < len(arguments) {
		if positionalOnly {
			normalized = append(normalized, arguments[index:]...)
			break
		}
		current := arguments[index]
		if current == "--" {
			normalized = append(normalized, current)
			commandContext = true
			positionalOnly = true
			index++
			continue
		}
		if current == "--"+copyFlagName {
			nextIndex := index + 1
			if nextIndex >= len(arguments) || strings.HasPrefix(arguments[nextIndex], "-") {
				normalized = append(normalized, fmt.Sprintf("--%s=%s", copyFlagName, booleanFlagTrueLiteral))
				index++
				continue
			}
			nextValue := arguments[nextIndex]
			if booleanValue, recognized := interpretCopyFlagLiteral(nextValue); recognized {
				normalized = append(normalized, fmt.Sprintf("--%s=%t", copyFlagName, booleanValue))
				index += 2
				continue
			}
			if commandContext || isCopyFlagCommand(nextValue) {
				normalized = append(normalized, current)
				index++
				continue
			}
			normalized = append(normalized, fmt.Sprintf("--%s=%s", copyFlagName, nextValue))
			index += 2
			continue
		}
		normalized = append(normalized, current)
		if !commandContext && !strings.HasPrefix(current, "-") && isCopyFlagCommand(current) {
			commandContext = true
		}
		index++
	}
	return normalized
}
