package media

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildExtractArgs(t *testing.T) {
	args := buildExtractArgs("/src/alice.mp4", "/work/clip.mp4", 1.5, 6.25)

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-ss 1.500 -to 6.250 -i /src/alice.mp4") {
		t.Fatalf("extract args = %q", joined)
	}
	if !strings.Contains(joined, "-c:v libx264") || !strings.Contains(joined, "-c:a aac") {
		t.Fatalf("codec args missing: %q", joined)
	}
	if args[len(args)-1] != "/work/clip.mp4" {
		t.Fatalf("output path not last: %v", args)
	}
}

func TestBuildConcatArgs(t *testing.T) {
	args := buildConcatArgs("/work/list.txt", "/out/final.mp4")
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-f concat -safe 0 -i /work/list.txt -c copy /out/final.mp4") {
		t.Fatalf("concat args = %q", joined)
	}
}

func TestWriteConcatList(t *testing.T) {
	dir := t.TempDir()
	listPath := filepath.Join(dir, "list.txt")

	if err := writeConcatList(listPath, []string{"/a/first.mp4", "/b/it's here.mp4"}); err != nil {
		t.Fatalf("writeConcatList: %v", err)
	}

	data, err := os.ReadFile(listPath)
	if err != nil {
		t.Fatalf("read list: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "file '/a/first.mp4'\n") {
		t.Fatalf("list content = %q", content)
	}
	if !strings.Contains(content, `it'\''s here.mp4`) {
		t.Fatalf("single quote not escaped: %q", content)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    float64
		wantErr bool
	}{
		{name: "plain", out: "12.345\n", want: 12.345},
		{name: "integer", out: "7", want: 7},
		{name: "garbage", out: "N/A", wantErr: true},
		{name: "empty", out: "", wantErr: true},
		{name: "negative", out: "-3.0", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseDuration(tc.out)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseDuration(%q) = %f, want error", tc.out, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDuration(%q): %v", tc.out, err)
			}
			if got != tc.want {
				t.Fatalf("parseDuration(%q) = %f, want %f", tc.out, got, tc.want)
			}
		})
	}
}

func TestParseDimensions(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    Dimensions
		wantErr bool
	}{
		{name: "standard", out: "1920x1080\n", want: Dimensions{Width: 1920, Height: 1080}},
		{name: "vertical", out: "1080x1920", want: Dimensions{Width: 1080, Height: 1920}},
		{name: "garbage", out: "whatx1080", wantErr: true},
		{name: "zero width", out: "0x1080", wantErr: true},
		{name: "missing separator", out: "1920", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseDimensions(tc.out)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseDimensions(%q) = %+v, want error", tc.out, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDimensions(%q): %v", tc.out, err)
			}
			if got != tc.want {
				t.Fatalf("parseDimensions(%q) = %+v, want %+v", tc.out, got, tc.want)
			}
		})
	}
}

func TestFormatSeconds(t *testing.T) {
	if got := formatSeconds(0); got != "0.000" {
		t.Fatalf("formatSeconds(0) = %q", got)
	}
	if got := formatSeconds(61.5); got != "61.500" {
		t.Fatalf("formatSeconds(61.5) = %q", got)
	}
}

func TestLimitedWriter_KeepsTail(t *testing.T) {
	lw := &limitedWriter{w: &bytes.Buffer{}, limit: 10}

	lw.Write([]byte("0123456789"))
	lw.Write([]byte("abcdef"))

	got := lw.w.String()
	if got != "6789abcdef" {
		t.Fatalf("tail = %q, want last 10 bytes", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate short = %q", got)
	}
	got := truncate("averylongstderrline", 6)
	if got != "...rrline" {
		t.Fatalf("truncate = %q", got)
	}
}
