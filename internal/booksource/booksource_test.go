package booksource

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSubtitleSourceSentences(t *testing.T) {
	srt := `1
00:00:01,000 --> 00:00:04,000
{\an8}Hello, world!

2
00:00:05,000 --> 00:00:08,000
<i>How are you?</i>

3
00:00:10,000 --> 00:00:12,000

`
	path := filepath.Join(t.TempDir(), "test.srt")
	if err := os.WriteFile(path, []byte(srt), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	source, err := NewSubtitleSource(path)
	if err != nil {
		t.Fatalf("NewSubtitleSource() error: %v", err)
	}

	sentences, err := source.Sentences()
	if err != nil {
		t.Fatalf("Sentences() error: %v", err)
	}
	if len(sentences) != 2 {
		t.Fatalf("expected 2 non-blank sentences (blank cue dropped), got %d: %+v", len(sentences), sentences)
	}
	if sentences[0].Text != "Hello, world!" {
		t.Errorf("expected markup stripped, got %q", sentences[0].Text)
	}
	if sentences[1].Text != "How are you?" {
		t.Errorf("expected italics tags stripped, got %q", sentences[1].Text)
	}
	if sentences[0].Index != 0 || sentences[0].Number != 1 {
		t.Errorf("expected first sentence index=0 number=1, got index=%d number=%d", sentences[0].Index, sentences[0].Number)
	}
	if sentences[1].Index != 1 || sentences[1].Number != 2 {
		t.Errorf("expected second sentence index=1 number=2, got index=%d number=%d", sentences[1].Index, sentences[1].Number)
	}
}
