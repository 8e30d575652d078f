package common

import (
	"encoding/json"
	"testing"
)

func TestValue_MarshalRoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		value Value
		json  string
	}{
		{"null", Null(), `null`},
		{"bool", Bool(true), `true`},
		{"int", Int(42), `42`},
		{"negative int", Int(-7), `-7`},
		{"float", Float(1.5), `1.5`},
		{"string", String("hello"), `"hello"`},
		{"empty list", List(), `[]`},
		{"list", List(Int(1), String("two")), `[1,"two"]`},
		{"map", Map(map[string]Value{"a": Int(1), "b": Bool(false)}), `{"a":1,"b":false}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.value)
			if err != nil {
				t.Fatalf("marshal failed: %v", err)
			}
			if string(data) != tc.json {
				t.Fatalf("expected %s, got %s", tc.json, data)
			}

			var parsed Value
			if err := json.Unmarshal(data, &parsed); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if !parsed.Equal(tc.value) {
				t.Fatalf("round trip changed value: %s", data)
			}
		})
	}
}

func TestValue_NumbersKeepKind(t *testing.T) {
	var v Value
	if err := json.Unmarshal([]byte(`3`), &v); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if v.Kind() != KindInt || v.IntVal() != 3 {
		t.Fatalf("expected int 3, got kind %d", v.Kind())
	}

	if err := json.Unmarshal([]byte(`3.0`), &v); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if v.Kind() != KindFloat || v.FloatVal() != 3.0 {
		t.Fatalf("expected float 3.0, got kind %d", v.Kind())
	}

	if err := json.Unmarshal([]byte(`1e2`), &v); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if v.Kind() != KindFloat || v.FloatVal() != 100 {
		t.Fatalf("expected float 100, got kind %d", v.Kind())
	}
}

func TestValue_MapKeysSortedInEncoding(t *testing.T) {
	v := Map(map[string]Value{"zeta": Int(1), "alpha": Int(2), "mid": Int(3)})
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"alpha":2,"mid":3,"zeta":1}` {
		t.Fatalf("expected sorted keys, got %s", data)
	}
}

func TestValue_Equal(t *testing.T) {
	if !Int(1).Equal(Int(1)) {
		t.Fatal("equal ints reported unequal")
	}
	if Int(1).Equal(Float(1)) {
		t.Fatal("int and float reported equal")
	}
	if List(Int(1)).Equal(List(Int(1), Int(2))) {
		t.Fatal("lists of different length reported equal")
	}
	a := Map(map[string]Value{"k": String("v")})
	b := Map(map[string]Value{"k": String("v")})
	if !a.Equal(b) {
		t.Fatal("equal maps reported unequal")
	}
}

func TestDirection_Valid(t *testing.T) {
	for _, d := range []Direction{DirectionOutgoing, DirectionIncoming, DirectionBoth} {
		if !d.Valid() {
			t.Fatalf("expected %q to be valid", d)
		}
	}
	if Direction("sideways").Valid() {
		t.Fatal("expected sideways to be invalid")
	}
}

func TestRelationship_Other(t *testing.T) {
	r := &Relationship{ID: "r1", SourceID: "a", TargetID: "b"}
	if r.Other("a") != "b" {
		t.Fatalf("expected b, got %s", r.Other("a"))
	}
	if r.Other("b") != "a" {
		t.Fatalf("expected a, got %s", r.Other("b"))
	}

	loop := &Relationship{ID: "r2", SourceID: "a", TargetID: "a"}
	if loop.Other("a") != "a" {
		t.Fatalf("expected a for self-loop, got %s", loop.Other("a"))
	}
}
