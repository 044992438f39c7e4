package scalars

import (
	"testing"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/stretchr/testify/assert"
)

func TestTimestampScalar(t *testing.T) {
	scalar := Timestamp()

	assert.Equal(t, "2024-01-15T10:30:00Z", scalar.Serialize("20240115103000"))
	assert.Equal(t, "2024-01-15T10:30:00Z", scalar.Serialize([]byte("20240115103000")))

	raw := "20010115192713"
	assert.Equal(t, "2001-01-15T19:27:13Z", scalar.Serialize(&raw))
	var missing *string
	assert.Nil(t, scalar.Serialize(missing))
	assert.Nil(t, scalar.Serialize("not a timestamp"))

	assert.Equal(t, "20240115103000", scalar.ParseValue("2024-01-15T10:30:00Z"))
	assert.Equal(t, "20240115000000", scalar.ParseValue("2024-01-15"))
	assert.Nil(t, scalar.ParseValue(42))

	assert.Equal(t, "20240115103000", scalar.ParseLiteral(&ast.StringValue{Value: "2024-01-15T10:30:00Z"}))
	assert.Nil(t, scalar.ParseLiteral(&ast.IntValue{Value: "20240115"}))
}

func TestJSONScalar(t *testing.T) {
	scalar := JSON()

	props := map[string]string{"wikibase_item": "Q42"}
	assert.Equal(t, props, scalar.Serialize(props))
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, scalar.Serialize([]byte(`{"a":1}`)))
	assert.Equal(t, "plain text", scalar.Serialize([]byte("plain text")))
	assert.Nil(t, scalar.Serialize(nil))

	literal := scalar.ParseLiteral(&ast.ObjectValue{Fields: []*ast.ObjectField{
		{Name: &ast.Name{Value: "n"}, Value: &ast.IntValue{Value: "3"}},
		{Name: &ast.Name{Value: "tags"}, Value: &ast.ListValue{Values: []ast.Value{&ast.StringValue{Value: "x"}}}},
	}})
	assert.Equal(t, map[string]interface{}{"n": int64(3), "tags": []interface{}{"x"}}, literal)
}

func TestNonNegativeIntScalar(t *testing.T) {
	scalar := NonNegativeInt()

	assert.Equal(t, 5, scalar.Serialize(int64(5)))
	assert.Equal(t, 10, scalar.ParseValue(float64(10)))
	assert.Nil(t, scalar.ParseValue(-1))
	assert.Nil(t, scalar.ParseValue(2.5))
	assert.Equal(t, 0, scalar.ParseLiteral(&ast.IntValue{Value: "0"}))
	assert.Nil(t, scalar.ParseLiteral(&ast.IntValue{Value: "-3"}))
}
