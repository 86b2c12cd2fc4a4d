package conversion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsConvertedName(t *testing.T) {
	cases := map[string]bool{
		"report-cmyk.pdf":         true,
		"a1b2c3d4_x-cmyk.pdf":     true,
		"report-cmyk.v2.pdf":      true,
		"scan-cmyk.png":           true,
		"report.pdf":              false,
		"cmyk.pdf":                false,
		"report-cmyked-final.pdf": false,
	}
	for name, want := range cases {
		assert.Equal(t, want, IsConvertedName(name), name)
	}
}

func TestHasInputExtension(t *testing.T) {
	assert.True(t, HasInputExtension("report.pdf"))
	assert.False(t, HasInputExtension("report.PDF"))
	assert.False(t, HasInputExtension("report.pdf.txt"))
	assert.False(t, HasInputExtension("report"))
}

func TestConvertedName(t *testing.T) {
	assert.Equal(t, "report-cmyk.pdf", ConvertedName("report.pdf"))
	assert.Equal(t, "a1b2c3d4_my.report-cmyk.pdf", ConvertedName("a1b2c3d4_my.report.pdf"))
	assert.Equal(t, "2025/06/scan-cmyk.pdf", ConvertedName("2025/06/scan.pdf"))
}

func TestStorageNameRoundTrip(t *testing.T) {
	name := StorageName("0f9e8d7c", "my_file.pdf")
	assert.Equal(t, "0f9e8d7c_my_file.pdf", name)

	source, ok := SourceName(name)
	assert.True(t, ok)
	assert.Equal(t, "my_file.pdf", source)
}

func TestSourceNameRejectsForeignNames(t *testing.T) {
	for _, name := range []string{"report.pdf", "short_x.pdf", "ZZZZZZZZ_x.pdf", "a1b2c3d4_"} {
		_, ok := SourceName(name)
		assert.False(t, ok, name)
	}
}
