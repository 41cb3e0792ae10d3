package segmenter

import (
	"strings"
	"testing"
)

func TestSplitPauseBetweenSentences(t *testing.T) {
	segments, rest := Split("Hello.[3s]World.")
	want := []Segment{
		{Kind: KindText, Content: "Hello."},
		{Kind: KindPause, Duration: 3},
		{Kind: KindText, Content: "World."},
	}
	assertSegments(t, segments, want)
	if rest != "" {
		t.Fatalf("expected empty remainder, got %q", rest)
	}
}

func TestSplitCJKSentences(t *testing.T) {
	segments, rest := Split("今天很累。[5s]放松一下。深呼吸")
	want := []Segment{
		{Kind: KindText, Content: "今天很累。"},
		{Kind: KindPause, Duration: 5},
		{Kind: KindText, Content: "放松一下。"},
	}
	assertSegments(t, segments, want)
	if rest != "深呼吸" {
		t.Fatalf("expected trailing sentence retained, got %q", rest)
	}
}

func TestSplitRetainsIncompleteText(t *testing.T) {
	segments, rest := Split("no terminator yet")
	if len(segments) != 0 {
		t.Fatalf("expected no segments, got %v", segments)
	}
	if rest != "no terminator yet" {
		t.Fatalf("remainder = %q", rest)
	}
}

func TestSplitTerminatorRunIsOneSentenceEnd(t *testing.T) {
	segments, rest := Split("Really?! Yes. Mayb")
	want := []Segment{
		{Kind: KindText, Content: "Really?!"},
		{Kind: KindText, Content: "Yes."},
	}
	assertSegments(t, segments, want)
	if rest != "Mayb" {
		t.Fatalf("remainder = %q", rest)
	}
}

func TestSplitDropsZeroPause(t *testing.T) {
	segments, _ := Split("稍等[0s]好的。")
	want := []Segment{
		{Kind: KindText, Content: "稍等"},
		{Kind: KindText, Content: "好的。"},
	}
	assertSegments(t, segments, want)
}

func TestSplitMalformedDirectiveIsText(t *testing.T) {
	segments, rest := Split("先[abcs]停顿。")
	want := []Segment{{Kind: KindText, Content: "先[abcs]停顿。"}}
	assertSegments(t, segments, want)
	if rest != "" {
		t.Fatalf("remainder = %q", rest)
	}
}

func TestSplitNewlineTerminates(t *testing.T) {
	segments, rest := Split("line one\nline two")
	want := []Segment{{Kind: KindText, Content: "line one"}}
	assertSegments(t, segments, want)
	if rest != "line two" {
		t.Fatalf("remainder = %q", rest)
	}
}

func TestSplitLeadingPause(t *testing.T) {
	segments, _ := Split("[2s]开始。")
	want := []Segment{
		{Kind: KindPause, Duration: 2},
		{Kind: KindText, Content: "开始。"},
	}
	assertSegments(t, segments, want)
}

// Incremental splitting over arbitrary chunk boundaries must yield the same
// segments as a single split of the whole script.
func TestSplitIncrementalMatchesWhole(t *testing.T) {
	script := "欢迎来到今晚的冥想。[3s]请找一个舒服的姿势。[10s]慢慢吸气，然后呼气。结束了！"
	whole, wholeRest := Split(script)

	for chunkSize := 1; chunkSize <= 7; chunkSize++ {
		var incremental []Segment
		buffer := ""
		for start := 0; start < len(script); start += chunkSize {
			end := start + chunkSize
			if end > len(script) {
				end = len(script)
			}
			buffer += script[start:end]
			segs, rest := Split(buffer)
			incremental = append(incremental, segs...)
			buffer = rest
		}
		if buffer != wholeRest {
			t.Fatalf("chunk size %d: remainder %q, want %q", chunkSize, buffer, wholeRest)
		}
		assertSegments(t, incremental, whole)
	}
}

func TestFlush(t *testing.T) {
	if _, ok := Flush("   \n"); ok {
		t.Fatal("blank remainder must not flush")
	}
	seg, ok := Flush("  trailing words ")
	if !ok || seg.Kind != KindText || seg.Content != "trailing words" {
		t.Fatalf("unexpected flush result %+v ok=%v", seg, ok)
	}
}

func assertSegments(t *testing.T, got, want []Segment) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("segment count = %d, want %d (got %v)", len(got), len(want), describe(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("segment %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func describe(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		if s.Kind == KindPause {
			b.WriteString("[pause]")
			continue
		}
		b.WriteString("{" + s.Content + "}")
	}
	return b.String()
}
