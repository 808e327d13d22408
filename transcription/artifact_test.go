package transcription

import (
	"strings"
	"testing"
	"time"
)

func TestPrepareDownload(t *testing.T) {
	now := time.Unix(1760000000, 0)
	success := "hello world" + Footer("distil-large-v3", 2340*time.Millisecond)

	tests := []struct {
		name string
		text string
		ok   bool
	}{
		{"success", success, true},
		{"empty", "", false},
		{"no input prompt", TextNoInput, false},
		{"starting placeholder", TextStarting, false},
		{"starting with hint", TextStarting + TextFirstRunHint, false},
		{"analyzing", TextAnalyzing, false},
		{"partial snapshot", "hello ", false},
		{"empty result sentinel", TextEmptyResult, false},
		{"fault envelope", FaultText("boom", "/tmp/a.wav", CategoryEngine), false},
		{"not ready", "❌ Model is not loaded yet.", false},
		{"bare footer", Footer("m", time.Second), false},
		{"whitespace before footer", "  \n" + Footer("m", time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			art, ok := PrepareDownload(tt.text, now)
			if ok != tt.ok {
				t.Fatalf("PrepareDownload ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				if art != nil {
					t.Error("expected nil artifact")
				}
				return
			}
			if art.Filename != "transcription_1760000000.txt" {
				t.Errorf("unexpected filename %q", art.Filename)
			}
			if string(art.Content) != tt.text {
				t.Errorf("content must keep the footer, got %q", art.Content)
			}
		})
	}
}

func TestArtifactFilename(t *testing.T) {
	name := ArtifactFilename(time.Unix(42, 999))
	if name != "transcription_42.txt" {
		t.Errorf("unexpected name %q", name)
	}
	if !strings.HasSuffix(name, ".txt") {
		t.Error("artifact must be a .txt file")
	}
}
