package main

import "testing"

func TestResolveBase(t *testing.T) {
	t.Setenv("KEYSTONE_API_BASE", "")
	if got := resolveBase("", "http://localhost:8000", "http://saved:8000"); got != "http://saved:8000" {
		t.Fatalf("persisted base should win over the default, got %s", got)
	}
	if got := resolveBase("http://flag:1", "http://localhost:8000", "http://saved:8000"); got != "http://flag:1" {
		t.Fatalf("flag should win, got %s", got)
	}
	t.Setenv("KEYSTONE_API_BASE", "http://env:9")
	if got := resolveBase("", "http://env:9", "http://saved:8000"); got != "http://env:9" {
		t.Fatalf("explicit env should win over persisted, got %s", got)
	}
	if got := resolveBase("", "http://localhost:8000", ""); got != "http://localhost:8000" {
		t.Fatalf("expected configured default, got %s", got)
	}
}
