package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrStageNotFound is returned by Advance when no stage sits at the given
// position.
var ErrStageNotFound = errors.New("stage not found")

// Failure is one unmet requirement. Check is "required", "type" or the rule
// operator.
type Failure struct {
	Field   string `json:"field"`
	Check   string `json:"check"`
	Message string `json:"message"`
}

// Result is the outcome of evaluating a payload against one stage.
type Result struct {
	StageID  uuid.UUID `json:"stage_id"`
	Passed   bool      `json:"passed"`
	Failures []Failure `json:"failures"`
}

// Advancement reports where a payload goes after evaluation at a stage. Next
// is nil when the stage did not pass or was the last active one.
type Advancement struct {
	Current   Stage  `json:"current"`
	Result    Result `json:"result"`
	Next      *Stage `json:"next,omitempty"`
	Completed bool   `json:"completed"`
}

// Evaluate checks declared fields first (presence, then type) and then every
// rule, in declaration order. It never stops at the first failure.
func Evaluate(stage Stage, payload map[string]interface{}) Result {
	res := Result{StageID: stage.ID, Failures: []Failure{}}

	for _, f := range stage.Fields {
		v, ok := payload[f.Name]
		if !ok || v == nil {
			if f.Required {
				res.Failures = append(res.Failures, Failure{Field: f.Name, Check: "required", Message: "field is required"})
			}
			continue
		}
		if !typeMatches(f.Type, v) {
			res.Failures = append(res.Failures, Failure{
				Field:   f.Name,
				Check:   "type",
				Message: fmt.Sprintf("expected %s", f.Type),
			})
		}
	}

	for _, r := range stage.Rules {
		if ok, msg := applyRule(r, payload[r.FieldName]); !ok {
			res.Failures = append(res.Failures, Failure{Field: r.FieldName, Check: string(r.Operator), Message: msg})
		}
	}

	res.Passed = len(res.Failures) == 0
	return res
}

// Advance evaluates payload at the stage in position and, if it passes,
// returns the next active stage by position.
func Advance(p *Pipeline, position int, payload map[string]interface{}) (*Advancement, error) {
	stages := append([]Stage(nil), p.Stages...)
	sort.Slice(stages, func(i, j int) bool { return stages[i].Position < stages[j].Position })

	idx := -1
	for i, s := range stages {
		if s.Position == position {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: position %d", ErrStageNotFound, position)
	}

	adv := &Advancement{Current: stages[idx], Result: Evaluate(stages[idx], payload)}
	if !adv.Result.Passed {
		return adv, nil
	}
	for i := idx + 1; i < len(stages); i++ {
		if stages[i].IsActive {
			next := stages[i]
			adv.Next = &next
			return adv, nil
		}
	}
	adv.Completed = true
	return adv, nil
}

func typeMatches(t FieldType, v interface{}) bool {
	switch t {
	case FieldText:
		_, ok := v.(string)
		return ok
	case FieldNumber:
		_, ok := asNumber(v)
		return ok
	case FieldDate:
		_, ok := asDate(v)
		return ok
	case FieldBool:
		_, ok := v.(bool)
		return ok
	}
	return false
}

func applyRule(r Rule, v interface{}) (bool, string) {
	if r.Operator == OpPresent {
		if v == nil {
			return false, "value is required"
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			return false, "value is required"
		}
		return true, ""
	}
	if v == nil {
		return false, "value is missing"
	}

	switch r.Operator {
	case OpEq:
		return compare(v, r.Value) == 0, "must equal " + r.Value
	case OpNeq:
		return compare(v, r.Value) != 0, "must not equal " + r.Value
	case OpGt:
		return compare(v, r.Value) > 0, "must be greater than " + r.Value
	case OpGte:
		return compare(v, r.Value) >= 0, "must be at least " + r.Value
	case OpLt:
		return compare(v, r.Value) < 0, "must be less than " + r.Value
	case OpLte:
		return compare(v, r.Value) <= 0, "must be at most " + r.Value
	case OpContains:
		if items, ok := v.([]interface{}); ok {
			for _, item := range items {
				if compare(item, r.Value) == 0 {
					return true, ""
				}
			}
			return false, "must contain " + r.Value
		}
		return strings.Contains(stringify(v), r.Value), "must contain " + r.Value
	}
	return false, "unknown operator " + string(r.Operator)
}

// compare orders v against the rule operand: numerically when both are
// numbers, chronologically when both are dates, otherwise as strings.
func compare(v interface{}, operand string) int {
	trimmed := strings.TrimSpace(operand)
	if a, ok := asNumber(v); ok {
		if b, err := strconv.ParseFloat(trimmed, 64); err == nil {
			switch {
			case a < b:
				return -1
			case a > b:
				return 1
			}
			return 0
		}
	}
	if a, ok := asDate(v); ok {
		if b, ok := asDate(trimmed); ok {
			return a.Compare(b)
		}
	}
	return strings.Compare(stringify(v), operand)
}

func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func jsonNumber(s string) json.Number { return json.Number(strings.TrimSpace(s)) }

func asDate(v interface{}) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func stringify(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	}
	if n, ok := asNumber(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
