package query

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParams(t *testing.T) {
	var in []any
	dec := json.NewDecoder(strings.NewReader(`[1, 2.5, "x", true, null, [3, 1e3], 9007199254740993]`))
	dec.UseNumber()
	if err := dec.Decode(&in); err != nil {
		t.Fatal(err)
	}
	out := Params(in)
	if v, ok := out[0].(int64); !ok || v != 1 {
		t.Errorf("out[0] = %#v", out[0])
	}
	if v, ok := out[1].(float64); !ok || v != 2.5 {
		t.Errorf("out[1] = %#v", out[1])
	}
	if out[2] != "x" || out[3] != true || out[4] != nil {
		t.Errorf("passthrough = %#v", out[2:5])
	}
	nested, ok := out[5].([]any)
	if !ok || nested[0] != int64(3) || nested[1] != float64(1000) {
		t.Errorf("nested = %#v", out[5])
	}
	if out[6] != int64(9007199254740993) {
		t.Errorf("big int = %#v", out[6])
	}
}

func TestNormalizeUUID(t *testing.T) {
	b := [16]byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0}
	if got := normalize(b); got != "12345678-9abc-def0-1234-56789abcdef0" {
		t.Errorf("normalize = %v", got)
	}
	if got := normalize(int32(5)); got != int32(5) {
		t.Errorf("normalize int = %#v", got)
	}
}

func TestPoolRunnerNotConfigured(t *testing.T) {
	_, err := NewPoolRunner(nil).Run(context.Background(), "SELECT 1", nil)
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
	if err.Error() != "NEON_DATABASE_URL not configured" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestIsWrite(t *testing.T) {
	cases := map[string]bool{
		"SELECT 1":                           false,
		"  select * from pages":              false,
		"(SELECT 1) UNION (SELECT 2)":        false,
		"-- list\nSELECT 1":                  false,
		"SHOW server_version":                false,
		"VALUES (1)":                         false,
		"UPDATE pages SET content = $1":      true,
		"insert into pages values (1)":       true,
		"DELETE FROM pages":                  true,
		"WITH x AS (DELETE FROM t) SELECT 1": true,
		"CREATE TABLE t (id int)":            true,
		"-- only a comment":                  false,
	}
	for sql, want := range cases {
		if got := IsWrite(sql); got != want {
			t.Errorf("IsWrite(%q) = %v, want %v", sql, got, want)
		}
	}
}
