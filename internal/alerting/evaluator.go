package alerting

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"github.com/ngoprog/alertengine/internal/errors"
)

// Value is a parsed rule parameter or configuration value.
type Value struct {
	Type    entities.ParamType
	Raw     string
	Int     int64
	Decimal float64
	Bool    bool
}

// ParseValue parses raw as typ. Integers are also exposed as decimals so
// numeric comparisons can mix both.
func ParseValue(typ entities.ParamType, raw string) (Value, error) {
	v := Value{Type: typ, Raw: raw}
	trimmed := strings.TrimSpace(raw)
	switch typ {
	case entities.ParamInteger:
		i, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return v, fmt.Errorf("%q is not an integer", raw)
		}
		v.Int, v.Decimal = i, float64(i)
	case entities.ParamDecimal:
		f, err := strconv.ParseFloat(strings.Replace(trimmed, ",", ".", 1), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return v, fmt.Errorf("%q is not a decimal", raw)
		}
		v.Decimal = f
	case entities.ParamBoolean:
		b, err := strconv.ParseBool(trimmed)
		if err != nil {
			return v, fmt.Errorf("%q is not a boolean", raw)
		}
		v.Bool = b
	case entities.ParamText:
	default:
		return v, fmt.Errorf("unknown parameter type %q", typ)
	}
	return v, nil
}

// Params holds a rule's parsed parameters by name.
type Params map[string]Value

func (p Params) Has(name string) bool {
	_, ok := p[name]
	return ok
}

func (p Params) Int(name string) int64       { return p[name].Int }
func (p Params) Decimal(name string) float64 { return p[name].Decimal }
func (p Params) Bool(name string) bool       { return p[name].Bool }
func (p Params) Text(name string) string     { return p[name].Raw }

func (p Params) clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ParseRuleParams checks the stored-parameter invariants of a rule (unique
// names, known types, parseable values) and returns the parsed set.
func ParseRuleParams(rule *entities.Rule) (Params, error) {
	params := make(Params, len(rule.Parameters))
	for i := range rule.Parameters {
		p := &rule.Parameters[i]
		if strings.TrimSpace(p.Name) == "" {
			return nil, validationError(rule.Key, "parameter %d has no name", i)
		}
		if _, dup := params[p.Name]; dup {
			return nil, validationError(rule.Key, "duplicate parameter %s", p.Name)
		}
		v, err := ParseValue(p.Type, p.Value)
		if err != nil {
			return nil, validationError(rule.Key, "parameter %s: %v", p.Name, err)
		}
		params[p.Name] = v
	}
	return params, nil
}

func validationError(ruleKey, format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("alerting").
		Category(errors.CategoryValidation).
		Context("rule_key", ruleKey).
		Build()
}
