package synthesis

import "testing"

func TestDetectLanguage(t *testing.T) {
	cases := []struct {
		code string
		want string
	}{
		{"public class Main {\n  public static void main(String[] args) {}\n}", "java"},
		{"using System;\nConsole.WriteLine(\"hi\");", "csharp"},
		{"#include <iostream>\nstd::cout << 1;", "cpp"},
		{"package main\n\nfunc main() {}", "go"},
		{"def handler(event):\n    return event", "python"},
		{"<?php echo $name; ?>", "php"},
		{"const x = items.map(i => i.id);", "javascript"},
		{"SELECT name FROM users WHERE id = 1", "sql"},
		{"<!DOCTYPE html><div>hi</div>", "html"},
		{".box { display: flex; margin: 4px; }", "css"},
		{"sudo apt-get install jq", "bash"},
		{"x = y + z", "unknown"},
	}
	for _, tc := range cases {
		if got := detectLanguage(tc.code); got != tc.want {
			t.Errorf("detectLanguage(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}
