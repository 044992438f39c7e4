// Package scalars defines the custom GraphQL scalars of the wiki schema.
package scalars

import (
	"log/slog"
	"math"
	"strconv"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	jsoniter "github.com/json-iterator/go"

	"wiki-graphql/internal/wiki"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NonNegativeInt is used for limit arguments.
func NonNegativeInt() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "NonNegativeInt",
		Description: "An integer greater than or equal to zero.",
		Serialize: func(value interface{}) interface{} {
			if parsed, ok := coerceNonNegativeInt(value); ok {
				return parsed
			}
			return nil
		},
		ParseValue: func(value interface{}) interface{} {
			if parsed, ok := coerceNonNegativeInt(value); ok {
				return parsed
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			intValue, ok := valueAST.(*ast.IntValue)
			if !ok {
				return nil
			}
			parsed, err := strconv.Atoi(intValue.Value)
			if err != nil || parsed < 0 {
				return nil
			}
			return parsed
		},
	})
}

// Timestamp exposes MediaWiki timestamps as ISO 8601 strings and accepts
// ISO 8601 input, converting it back to the stored form.
func Timestamp() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Timestamp",
		Description: "Timestamp in ISO 8601 format, UTC, without fractional seconds.",
		Serialize: func(value interface{}) interface{} {
			var raw string
			switch v := value.(type) {
			case string:
				raw = v
			case *string:
				if v == nil {
					return nil
				}
				raw = *v
			case []byte:
				raw = string(v)
			default:
				return nil
			}
			formatted, err := wiki.FormatTimestamp(raw)
			if err != nil {
				slog.Default().Warn("unparseable timestamp", slog.String("value", raw))
				return nil
			}
			return formatted
		},
		ParseValue: func(value interface{}) interface{} {
			s, ok := value.(string)
			if !ok {
				return nil
			}
			parsed, err := wiki.ParseTimestamp(s)
			if err != nil {
				return nil
			}
			return parsed
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			sv, ok := valueAST.(*ast.StringValue)
			if !ok {
				return nil
			}
			parsed, err := wiki.ParseTimestamp(sv.Value)
			if err != nil {
				return nil
			}
			return parsed
		},
	})
}

// JSON passes structured values through unchanged. Raw bytes are decoded as
// JSON when they hold a document and returned as text otherwise.
func JSON() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "JSON",
		Description: "Arbitrary JSON value.",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case nil:
				return nil
			case []byte:
				var decoded interface{}
				if err := json.Unmarshal(v, &decoded); err != nil {
					return string(v)
				}
				return decoded
			default:
				return v
			}
		},
		ParseValue: func(value interface{}) interface{} {
			return value
		},
		ParseLiteral: literalValue,
	})
}

func literalValue(valueAST ast.Value) interface{} {
	switch v := valueAST.(type) {
	case *ast.StringValue:
		return v.Value
	case *ast.BooleanValue:
		return v.Value
	case *ast.IntValue:
		if n, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
			return n
		}
		return nil
	case *ast.FloatValue:
		if f, err := strconv.ParseFloat(v.Value, 64); err == nil {
			return f
		}
		return nil
	case *ast.ListValue:
		out := make([]interface{}, len(v.Values))
		for i, item := range v.Values {
			out[i] = literalValue(item)
		}
		return out
	case *ast.ObjectValue:
		out := make(map[string]interface{}, len(v.Fields))
		for _, field := range v.Fields {
			out[field.Name.Value] = literalValue(field.Value)
		}
		return out
	default:
		return nil
	}
}

func coerceNonNegativeInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		if v < 0 {
			return 0, false
		}
		return v, true
	case int32:
		if v < 0 {
			return 0, false
		}
		return int(v), true
	case int64:
		if v < 0 || v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case float64:
		if v != math.Trunc(v) || v < 0 || v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
