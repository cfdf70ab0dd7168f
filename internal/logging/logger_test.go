// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.
package logging

import (
	"bytes"
	"strings"
	"testing"

	clog "github.com/charmbracelet/log"
)

func TestHelpersWriteThroughPackageLogger(t *testing.T) {
	var buf bytes.Buffer
	old := L
	L = clog.New(&buf)
	defer func() { L = old }()

	Infof("hello %s", "world")
	if !strings.Contains(buf.String(), "hello world") {
		t.Fatalf("expected formatted message in output, got %q", buf.String())
	}
}

func TestSetDebugGatesDebugf(t *testing.T) {
	var buf bytes.Buffer
	old := L
	L = clog.New(&buf)
	defer func() { L = old }()

	SetDebug(false)
	Debugf("hidden %d", 1)
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("debug message emitted while debug disabled: %q", buf.String())
	}

	SetDebug(true)
	Debugf("visible %d", 2)
	if !strings.Contains(buf.String(), "visible 2") {
		t.Fatalf("debug message missing while debug enabled: %q", buf.String())
	}
}
