package ffmpeg

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// reservedFlags are set by the muxer itself and may not be overridden.
var reservedFlags = []string{"-i", "-f", "-y", "-safe"}

// SplitCommand splits a user supplied argument string without a shell.
func SplitCommand(command string) ([]string, error) {
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("invalid argument syntax: %w", err)
	}
	return args, nil
}

// ValidateExtraArgs rejects shell metacharacters and flags that would change
// the muxer's input, format or overwrite behavior.
func ValidateExtraArgs(args []string) error {
	for _, arg := range args {
		if strings.ContainsAny(arg, "|&;`$()<>") {
			return fmt.Errorf("disallowed character found in argument: %s", arg)
		}
		for _, flag := range reservedFlags {
			if arg == flag {
				return fmt.Errorf("argument %s is managed by vodgrab", arg)
			}
		}
	}
	return nil
}

// ParseExtraArgs splits and validates FF_EXTRA_ARGS.
func ParseExtraArgs(command string) ([]string, error) {
	if strings.TrimSpace(command) == "" {
		return nil, nil
	}
	args, err := SplitCommand(command)
	if err != nil {
		return nil, err
	}
	if err := ValidateExtraArgs(args); err != nil {
		return nil, err
	}
	return args, nil
}
