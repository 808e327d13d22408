package transcription

import (
	"fmt"
	"strings"
	"time"
)

// DownloadArtifact is the text file offered after a successful session.
type DownloadArtifact struct {
	Filename string
	Content  []byte
}

// ArtifactFilename returns the artifact name for a session ending at t.
func ArtifactFilename(t time.Time) string {
	return fmt.Sprintf("transcription_%d.txt", t.Unix())
}

// PrepareDownload turns the text of a session's last event into a download.
// Only a terminal success text qualifies; prompts, placeholders, partial
// snapshots, the empty-result sentinel and error envelopes yield false.
// The content keeps the summary footer.
func PrepareDownload(text string, now time.Time) (*DownloadArtifact, bool) {
	i := strings.LastIndex(text, SuccessMarker)
	if i <= 0 || strings.TrimSpace(text[:i]) == "" {
		return nil, false
	}
	return &DownloadArtifact{
		Filename: ArtifactFilename(now),
		Content:  []byte(text),
	}, true
}
