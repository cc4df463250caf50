package main

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeGo(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunOnQueryConstants(t *testing.T) {
	var stderr bytes.Buffer
	if code := run([]string{"../../sqlinline"}, &stderr); code != 0 {
		t.Fatalf("sqllint reported violations:\n%s", stderr.String())
	}
}

func TestRunReportsViolations(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "q.go", "package q\n\n"+
		"const QGood = `--sql 0b7c1a52-3d4e-4f60-8a71-92b3c4d5e6f7\nselect 1`\n"+
		"const QMissing = `select 2`\n"+
		"const QDup = `--sql 0b7c1a52-3d4e-4f60-8a71-92b3c4d5e6f7\nselect 3`\n"+
		"const Message = \"failed with a timeout\"\n")

	var stderr bytes.Buffer
	if code := run([]string{dir}, &stderr); code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	out := stderr.String()
	var flagged []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if open := strings.LastIndex(line, "("); open >= 0 && strings.HasSuffix(line, ")") {
			flagged = append(flagged, line[open+1:len(line)-1])
		}
	}
	if !reflect.DeepEqual(flagged, []string{"QMissing", "QDup"}) {
		t.Fatalf("flagged constants = %v, output:\n%s", flagged, out)
	}
	if !strings.Contains(out, "marker already used by QGood") {
		t.Fatalf("duplicate report should name the first holder:\n%s", out)
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("\n  --sql x\nselect 1"); got != "--sql x" {
		t.Fatalf("firstLine = %q", got)
	}
}
