package main

import (
	"reflect"
	"testing"
)

func TestParseParams(t *testing.T) {
	got, err := parseParams([]string{
		"message=add a retry to the client",
		`targets={"protein_g":180}`,
		`files=["cmd/api/main.go"]`,
		"apply=true",
		"passage=John 3:16",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got["message"] != "add a retry to the client" || got["passage"] != "John 3:16" {
		t.Errorf("strings not kept: %v", got)
	}
	if got["apply"] != true {
		t.Errorf("apply should decode to bool, got %#v", got["apply"])
	}
	if !reflect.DeepEqual(got["targets"], map[string]any{"protein_g": float64(180)}) {
		t.Errorf("unexpected targets %#v", got["targets"])
	}
	if !reflect.DeepEqual(got["files"], []any{"cmd/api/main.go"}) {
		t.Errorf("unexpected files %#v", got["files"])
	}

	if _, err := parseParams([]string{"novalue"}); err == nil {
		t.Error("expected error for missing '='")
	}
}
