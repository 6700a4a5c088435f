package util

import (
	"strings"
	"testing"
)

const urlSafeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

func TestGenIDLength(t *testing.T) {
	for i := 0; i < 100; i++ {
		id, err := GenID()
		if err != nil {
			t.Fatal(err)
		}
		if len(id) != IDLength {
			t.Fatalf("expected %d-char id, got %q (%d chars)", IDLength, id, len(id))
		}
	}
}

func TestGenIDURLSafe(t *testing.T) {
	for i := 0; i < 100; i++ {
		id, err := GenID()
		if err != nil {
			t.Fatal(err)
		}
		for _, c := range id {
			if !strings.ContainsRune(urlSafeAlphabet, c) {
				t.Fatalf("id %q contains non-url-safe character %q", id, c)
			}
		}
	}
}

func TestGenIDDistribution(t *testing.T) {
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		id, err := GenID()
		if err != nil {
			t.Fatal(err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q after %d generations", id, i)
		}
		seen[id] = true
	}
}
