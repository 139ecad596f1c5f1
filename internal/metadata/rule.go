package metadata

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Rule is one validate or sanitize entry: either a bare keyword
// ("not empty") or a sequence whose head is the keyword and whose tail
// holds the arguments (["min-length", 3]).
type Rule struct {
	Keyword string
	Args    []any
}

// NewRule builds a rule with a normalized keyword.
func NewRule(keyword string, args ...any) Rule {
	return Rule{Keyword: NormalizeKeyword(keyword), Args: args}
}

func (r Rule) String() string {
	if len(r.Args) == 0 {
		return r.Keyword
	}
	return fmt.Sprintf("%s %v", r.Keyword, r.Args)
}

// IntArg returns argument i as an int.
func (r Rule) IntArg(i int) (int, error) {
	if i >= len(r.Args) {
		return 0, fmt.Errorf("%s: missing argument %d", r.Keyword, i+1)
	}
	switch v := r.Args[i].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s: argument %d is not an integer", r.Keyword, i+1)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%s: argument %d is not an integer", r.Keyword, i+1)
}

// StringArg returns argument i as a string.
func (r Rule) StringArg(i int) (string, error) {
	if i >= len(r.Args) {
		return "", fmt.Errorf("%s: missing argument %d", r.Keyword, i+1)
	}
	s, ok := r.Args[i].(string)
	if !ok {
		return "", fmt.Errorf("%s: argument %d is not a string", r.Keyword, i+1)
	}
	return s, nil
}

func (r *Rule) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var kw string
		if err := value.Decode(&kw); err != nil {
			return err
		}
		*r = NewRule(kw)
		return nil
	case yaml.SequenceNode:
		var parts []any
		if err := value.Decode(&parts); err != nil {
			return err
		}
		return r.fromParts(parts, value.Line)
	}
	return fmt.Errorf("line %d: rule must be a keyword or a list", value.Line)
}

func (r Rule) MarshalJSON() ([]byte, error) {
	if len(r.Args) == 0 {
		return json.Marshal(r.Keyword)
	}
	return json.Marshal(append([]any{r.Keyword}, r.Args...))
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	var kw string
	if err := json.Unmarshal(data, &kw); err == nil {
		*r = NewRule(kw)
		return nil
	}
	var parts []any
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("rule must be a keyword or a list: %w", err)
	}
	return r.fromParts(parts, 0)
}

func (r *Rule) fromParts(parts []any, line int) error {
	if len(parts) == 0 {
		return fmt.Errorf("line %d: empty rule", line)
	}
	kw, ok := parts[0].(string)
	if !ok {
		return fmt.Errorf("line %d: rule keyword must be a string", line)
	}
	*r = NewRule(kw, parts[1:]...)
	return nil
}
