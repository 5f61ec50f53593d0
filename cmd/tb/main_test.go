package main

import (
	"testing"
	"time"
)

func TestParseWindowCoversEndDay(t *testing.T) {
	start, end, err := parseWindow("2024-03-23", "2024-03-26")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	due, _ := time.Parse(time.RFC3339, "2024-03-26T15:00:00Z")
	if due.Before(start) || due.After(end) {
		t.Fatalf("due %s should fall inside [%s, %s]", due, start, end)
	}

	if _, _, err := parseWindow("2024-03-26", "2024-03-23"); err == nil {
		t.Fatal("reversed window should be rejected")
	}
}
