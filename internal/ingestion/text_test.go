package ingestion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"whitespace only", "   \n  \n\t ", ""},
		{"headings kept", "# Title\n## Subtitle\nContent here", "# Title\n## Subtitle\nContent here"},
		{"bullets kept", "- Item 1\n- Item 2\n* Item 3", "- Item 1\n- Item 2\n* Item 3"},
		{"bullet spacing kept", "*   Go (5+ years)   ", "*   Go (5+ years)"},
		{"inner spaces collapsed", "Line    with    multiple    spaces", "Line with multiple spaces"},
		{"tabs collapsed", "Skills:\t\tGo,\tRust", "Skills: Go, Rust"},
		{"blank runs capped at one", "Line 1\n\n\n\n\nLine 2", "Line 1\n\nLine 2"},
		{"line endings", "Line 1\r\nLine 2\rLine 3\nLine 4", "Line 1\nLine 2\nLine 3\nLine 4"},
		{"relative indent kept", "    Indented line\n  Less indented", "Indented line\n  Less indented"},
		{"unicode untouched", "Test with émojis 🚀 and spéciàl chàracters", "Test with émojis 🚀 and spéciàl chàracters"},
		{
			name:  "posting",
			input: "# Senior Software Engineer\r\n\r\n## Responsibilities\n\n\n\n- Go experience\n*   Go (5+ years)\nWe    value   kindness.   ",
			want:  "# Senior Software Engineer\n\n## Responsibilities\n\n- Go experience\n*   Go (5+ years)\nWe value kindness.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanText(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, CleanText(got), "cleaning is idempotent")
		})
	}
}

func TestIngestFromFile(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "ml.txt")
	second := filepath.Join(dir, "sre.txt")
	require.NoError(t, os.WriteFile(first, []byte("# ML Engineer\r\n\r\n- PyTorch   \n"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("# SRE\n\n- Kubernetes"), 0o644))

	text, src, err := IngestFromFile(first)
	require.NoError(t, err)
	assert.Equal(t, "# ML Engineer\n\n- PyTorch", text)
	require.NotNil(t, src)
	assert.Equal(t, SourceFile, src.Kind)
	assert.Equal(t, first, src.Origin)
	assert.Len(t, src.Digest, 64)
	assert.False(t, src.IngestedAt.IsZero())

	_, again, err := IngestFromFile(first)
	require.NoError(t, err)
	assert.Equal(t, src.Digest, again.Digest)

	_, other, err := IngestFromFile(second)
	require.NoError(t, err)
	assert.NotEqual(t, src.Digest, other.Digest)
}

func TestIngestFromFile_Missing(t *testing.T) {
	text, src, err := IngestFromFile(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
	assert.Empty(t, text)
	assert.Nil(t, src)
}

func TestRequirementsFromText(t *testing.T) {
	text := `# Senior ML Engineer

We train large models.

Requirements:
- PyTorch
* CUDA kernels
  • Distributed training
- PyTorch
-
Nice to have: Rust`

	assert.Equal(t, []string{"PyTorch", "CUDA kernels", "Distributed training"}, RequirementsFromText(text))
	assert.Empty(t, RequirementsFromText("No bullets here.\nJust prose."))
}

func TestTitleFromText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"heading", "## Senior ML Engineer\n\n- PyTorch", "Senior ML Engineer"},
		{"plain first line", "\n\nStaff Backend Engineer\nMore text", "Staff Backend Engineer"},
		{"bullets only", "- PyTorch\n- CUDA", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TitleFromText(tt.text))
		})
	}
}
