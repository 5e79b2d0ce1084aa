package synthesis

import (
	"regexp"
	"strings"
)

// languageRule detects the language of a code fragment. Rules are evaluated
// in order and the first match wins; a fragment matching none is tagged
// "unknown".
type languageRule struct {
	language string
	match    func(code string) bool
}

var sqlDetectRe = regexp.MustCompile(`(?i)\b(select|insert|update|delete)\b.*\b(from|into|set|where)\b`)

var languageRules = []languageRule{
	{"java", containsAny("public class ", "System.out.", "public static void main")},
	{"csharp", containsAny("using System", "namespace ", "Console.WriteLine")},
	{"cpp", containsAny("#include <", "std::", "cout <<")},
	{"go", containsAny("func ", "package main", ":= ")},
	{"python", containsAny("def ", "elif ", "print(", "import numpy", "self.")},
	{"php", containsAny("<?php", "->$", "echo $")},
	{"javascript", containsAny("function ", "=> ", "console.log", "const ", "let ", "var ")},
	{"sql", func(code string) bool { return sqlDetectRe.MatchString(code) }},
	{"html", containsAny("<html", "<div", "<body", "<!DOCTYPE")},
	{"css", containsAny("display:", "margin:", "px;")},
	{"bash", containsAny("#!/bin/", "sudo ", "apt-get ", "npm install", "pip install")},
}

func containsAny(needles ...string) func(string) bool {
	return func(code string) bool {
		for _, n := range needles {
			if strings.Contains(code, n) {
				return true
			}
		}
		return false
	}
}

// detectLanguage tags a code fragment by the first matching heuristic rule.
func detectLanguage(code string) string {
	for _, rule := range languageRules {
		if rule.match(code) {
			return rule.language
		}
	}
	return "unknown"
}
