package config

import (
	"errors"
	"fmt"
	"strings"
)

// Output formats accepted by --output.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
	OutputOTEL = "otel"
)

// ErrHelp is returned when usage was requested with -h or --help.
var ErrHelp = errors.New("help requested")

// CustomAttribute is a span attribute computed from each record.
type CustomAttribute struct {
	Name       string
	Expression string
}

// Config holds the parsed command-line configuration
type Config struct {
	// Input is "-" for stdin, a ws:// URL or a capture file path
	Input string
	// Follow keeps reading a capture file as it grows
	Follow bool
	// Filters are symbol wildcard patterns; empty means all symbols
	Filters []string
	// Parse enables decoding of tagged message bodies
	Parse bool
	// Timestamp renders each record's timestamp as wall-clock time
	Timestamp bool
	// Outputs lists the enabled formats, in order
	Outputs []string
	// CustomAttributes are expr expressions attached to exported spans
	CustomAttributes []CustomAttribute
	// TraceID is an expression yielding the trace ID of each span
	TraceID string
	// ParentID is an expression yielding the parent span ID of each span
	ParentID string

	ShowVersion bool
	ShowLicense bool
}

// HasOutput reports whether format is enabled.
func (c *Config) HasOutput(format string) bool {
	for _, o := range c.Outputs {
		if o == format {
			return true
		}
	}
	return false
}

// Usage returns the usage text for programName.
func Usage(programName string) string {
	return fmt.Sprintf(`Usage: %s [options] [INPUT]

Reads agent notifications and prints correlated XPC messages.

INPUT is "-" (stdin, default), a capture file (optionally zstd-compressed)
or a ws:// URL of the injection bridge.

Options:
  -i, --input INPUT        same as the positional INPUT
  -f, --filter PATTERN     only show symbols matching PATTERN ('*' wildcards), repeatable
  -p, --parse              decode tagged message bodies (bplist00, bplist17, ...)
  -t, --timestamp          print the wall-clock time of each message
  -o, --output FORMAT      text, json, yaml or otel; repeatable (default text)
  -a, --attribute N=EXPR   add span attribute N computed by EXPR, repeatable
      --trace-id EXPR      expression for the trace ID of each span
      --parent-id EXPR     expression for the parent span ID of each span
      --follow             keep reading INPUT as it grows
      --version            print version and exit
      --license            print license and exit
  -h, --help               show this help

Example: %s -p -t -f 'xpc_connection_send_*' capture.ndjson.zst`, programName, programName)
}

// ParseArgs parses command-line arguments on top of environment defaults.
// Expected format: program_name [options] [INPUT]
func ParseArgs(args []string, envCfg *EnvConfig) (*Config, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no arguments provided")
	}
	programName := args[0]

	cfg := &Config{Input: "-"}
	if envCfg != nil {
		cfg.Filters = append(cfg.Filters, envCfg.Filter...)
		cfg.TraceID = envCfg.TraceID
		cfg.ParentID = envCfg.ParentID
		attrs, err := ParseAttributeString(envCfg.Attributes)
		if err != nil {
			return nil, fmt.Errorf("invalid XPCSPY_ATTRIBUTES: %w", err)
		}
		cfg.CustomAttributes = attrs
	}

	var positional []string
	inputSet := false

	for i := 1; i < len(args); i++ {
		arg := args[i]

		name, inlineValue, hasInline := arg, "", false
		if strings.HasPrefix(arg, "--") {
			name, inlineValue, hasInline = strings.Cut(arg, "=")
		}

		value := func() (string, error) {
			if hasInline {
				return inlineValue, nil
			}
			if i+1 >= len(args) {
				return "", fmt.Errorf("%s requires a value", name)
			}
			i++
			return args[i], nil
		}

		switch name {
		case "-h", "--help":
			return nil, fmt.Errorf("%w\n%s", ErrHelp, Usage(programName))
		case "--version":
			cfg.ShowVersion = true
		case "--license":
			cfg.ShowLicense = true
		case "--follow":
			cfg.Follow = true
		case "-p", "--parse":
			cfg.Parse = true
		case "-t", "--timestamp":
			cfg.Timestamp = true
		case "-i", "--input":
			v, err := value()
			if err != nil {
				return nil, err
			}
			cfg.Input = v
			inputSet = true
		case "-f", "--filter":
			v, err := value()
			if err != nil {
				return nil, err
			}
			cfg.Filters = append(cfg.Filters, v)
		case "-o", "--output":
			v, err := value()
			if err != nil {
				return nil, err
			}
			if err := validateOutput(v); err != nil {
				return nil, err
			}
			cfg.Outputs = append(cfg.Outputs, v)
		case "-a", "--attribute":
			v, err := value()
			if err != nil {
				return nil, err
			}
			attr, err := parseAttribute(v)
			if err != nil {
				return nil, err
			}
			cfg.CustomAttributes = append(cfg.CustomAttributes, attr)
		case "--trace-id":
			v, err := value()
			if err != nil {
				return nil, err
			}
			cfg.TraceID = v
		case "--parent-id":
			v, err := value()
			if err != nil {
				return nil, err
			}
			cfg.ParentID = v
		default:
			if strings.HasPrefix(arg, "-") && arg != "-" {
				return nil, fmt.Errorf("unknown option %q\n%s", arg, Usage(programName))
			}
			positional = append(positional, arg)
		}
	}

	switch {
	case len(positional) > 1:
		return nil, fmt.Errorf("too many inputs: %s\n%s", strings.Join(positional, " "), Usage(programName))
	case len(positional) == 1 && inputSet:
		return nil, fmt.Errorf("input given twice: %q and %q", cfg.Input, positional[0])
	case len(positional) == 1:
		cfg.Input = positional[0]
	}

	if len(cfg.Outputs) == 0 {
		cfg.Outputs = []string{OutputText}
	}

	return cfg, nil
}

func validateOutput(format string) error {
	switch format {
	case OutputText, OutputJSON, OutputYAML, OutputOTEL:
		return nil
	default:
		return fmt.Errorf("invalid output format %q (expected text, json, yaml or otel)", format)
	}
}

// parseAttribute parses a single NAME=EXPR pair.
func parseAttribute(s string) (CustomAttribute, error) {
	name, expression, found := strings.Cut(s, "=")
	if !found {
		return CustomAttribute{}, fmt.Errorf("invalid attribute format %q, expected NAME=EXPR", s)
	}
	name = strings.TrimSpace(name)
	expression = strings.TrimSpace(expression)
	if name == "" {
		return CustomAttribute{}, fmt.Errorf("invalid attribute %q: name cannot be empty", s)
	}
	if expression == "" {
		return CustomAttribute{}, fmt.Errorf("invalid attribute %q: expression cannot be empty", s)
	}
	return CustomAttribute{Name: name, Expression: expression}, nil
}

// ParseAttributeString parses "name1=expr1;name2=expr2". Empty sections are
// skipped.
func ParseAttributeString(s string) ([]CustomAttribute, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var attrs []CustomAttribute
	for _, section := range strings.Split(s, ";") {
		if strings.TrimSpace(section) == "" {
			continue
		}
		attr, err := parseAttribute(section)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}
	return attrs, nil
}
