package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/pilgi/transcription"
)

func TestRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := &renderer{w: &buf}
	for _, ev := range []transcription.ProgressEvent{
		{Fraction: 0, Kind: transcription.KindProgress, Text: transcription.TextStarting},
		{Fraction: 0.8, Kind: transcription.KindToken, Text: "hello "},
		{Fraction: 1, Kind: transcription.KindToken, Text: "hello world "},
		{Fraction: 1, Kind: transcription.KindSuccess, Terminal: true, Text: "hello world" + transcription.Footer("tiny", 1200*time.Millisecond)},
	} {
		r.render(ev)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "[  0%] "+transcription.TextStarting+"\n") {
		t.Errorf("unexpected progress line in %q", out)
	}
	if !strings.Contains(out, "hello world \n") {
		t.Errorf("tokens must print incrementally, got %q", out)
	}
	if strings.Count(out, "hello") != 1 {
		t.Errorf("text repeated in %q", out)
	}
	if !strings.HasSuffix(out, "✅ Done\nModel: tiny | Elapsed: 1.2s\n") {
		t.Errorf("expected footer at the end, got %q", out)
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(buf.String(), "pilgi") {
		t.Errorf("unexpected version output %q", buf.String())
	}
}

func TestTranscribeRequiresFile(t *testing.T) {
	rootCmd.SetArgs([]string{"transcribe"})
	if err := rootCmd.Execute(); err == nil {
		t.Error("expected an argument error")
	}
}
