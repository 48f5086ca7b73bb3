package dispatch

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"social-custody-gateway/internal/core/domain"
	"social-custody-gateway/pkg/apperror"

	"github.com/shopspring/decimal"
)

// ParamType is the JSON type a parameter must carry.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeInteger ParamType = "integer"
	TypeBool    ParamType = "bool"
)

// Param describes one named operation parameter.
type Param struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Required    bool      `json:"required"`
	Description string    `json:"description,omitempty"`
}

func required(name string, t ParamType, desc string) Param {
	return Param{Name: name, Type: t, Required: true, Description: desc}
}

func optional(name string, t ParamType, desc string) Param {
	return Param{Name: name, Type: t, Description: desc}
}

// Args holds parameters that passed validation, normalised to Go types:
// string, decimal.Decimal, int64 or bool.
type Args map[string]any

// validate checks raw against schema. Numbers may arrive as JSON numbers,
// json.Number or numeric strings. Unknown keys are ignored; an explicit null
// counts as absent.
func validate(schema []Param, raw map[string]any) (Args, error) {
	args := make(Args, len(schema))
	for _, p := range schema {
		v, ok := raw[p.Name]
		if !ok || v == nil {
			if p.Required {
				return nil, apperror.ErrInvalidParameters(fmt.Sprintf("missing required parameter %q", p.Name))
			}
			continue
		}

		var (
			val any
			err error
		)
		switch p.Type {
		case TypeString:
			val, err = asString(v)
		case TypeNumber:
			val, err = asNumber(v)
		case TypeInteger:
			val, err = asInteger(v)
		case TypeBool:
			val, err = asBool(v)
		default:
			err = fmt.Errorf("unsupported type %s", p.Type)
		}
		if err != nil {
			return nil, apperror.ErrInvalidParameters(fmt.Sprintf("parameter %q: %v", p.Name, err))
		}
		args[p.Name] = val
	}
	return args, nil
}

func asString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}

func asNumber(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Decimal{}, fmt.Errorf("not a finite number")
		}
		return decimal.NewFromFloat(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case json.Number:
		return parseDecimal(n.String())
	case string:
		return parseDecimal(n)
	default:
		return decimal.Decimal{}, fmt.Errorf("expected number, got %T", v)
	}
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("expected number, got %q", s)
	}
	return d, nil
}

func asInteger(v any) (int64, error) {
	d, err := asNumber(v)
	if err != nil {
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
	if !d.IsInteger() || d.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || d.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, fmt.Errorf("expected integer, got %s", d)
	}
	return d.IntPart(), nil
}

func asBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, fmt.Errorf("expected bool, got %q", b)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("expected bool, got %T", v)
	}
}

func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// OptString returns nil when name was not supplied.
func (a Args) OptString(name string) *string {
	s, ok := a[name].(string)
	if !ok {
		return nil
	}
	return &s
}

func (a Args) Decimal(name string) decimal.Decimal {
	d, _ := a[name].(decimal.Decimal)
	return d
}

func (a Args) Int(name string) (int64, bool) {
	n, ok := a[name].(int64)
	return n, ok
}

func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// Identity reads a platform/id pair from the named parameters.
func (a Args) Identity(platformKey, idKey string) (domain.Identity, error) {
	platform, err := domain.ParsePlatform(a.String(platformKey))
	if err != nil {
		return domain.Identity{}, apperror.ErrInvalidParameters(fmt.Sprintf("parameter %q: %v", platformKey, err))
	}
	id := strings.TrimSpace(a.String(idKey))
	if id == "" {
		return domain.Identity{}, apperror.ErrInvalidParameters(fmt.Sprintf("parameter %q must not be empty", idKey))
	}
	return domain.Identity{Platform: platform, PlatformID: id}, nil
}

// Decimals reads a token decimal scale.
func (a Args) Decimals(name string) (uint8, error) {
	n, ok := a.Int(name)
	if !ok {
		return 0, apperror.ErrInvalidParameters(fmt.Sprintf("missing required parameter %q", name))
	}
	if n < 0 || n > math.MaxUint8 {
		return 0, apperror.ErrInvalidParameters(fmt.Sprintf("parameter %q must be between 0 and 255", name))
	}
	return uint8(n), nil
}
