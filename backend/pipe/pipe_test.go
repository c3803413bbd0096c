package pipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duotui/duotui/fsops"
)

func TestShQuoteEscapesSingleQuotes(t *testing.T) {
	assert.Equal(t, `'plain'`, shQuote("plain"))
	assert.Equal(t, `'it'\''s'`, shQuote("it's"))
}

func TestParseFindOutputParsesFilesDirsAndSymlinks(t *testing.T) {
	out := "f\t5\t1700000000.0\t/data/a.txt\n" +
		"d\t0\t1700000001.0\t/data/sub\n" +
		"l\t0\t1700000002.0\t/data/link\n"

	files := parseFindOutput(out)
	require.Len(t, files, 3)

	assert.Equal(t, fsops.KindRegular, files[0].Kind)
	assert.Equal(t, "/data/a.txt", files[0].Path)
	assert.Equal(t, int64(5), files[0].Size)

	assert.Equal(t, fsops.KindDirectory, files[1].Kind)
	assert.Equal(t, fsops.KindSymlink, files[2].Kind)
}

func TestParseFindOutputSkipsBlankAndMalformedLines(t *testing.T) {
	out := "\nf\t5\t0\t/data/a.txt\nnotenoughfields\n"
	files := parseFindOutput(out)
	require.Len(t, files, 1)
	assert.Equal(t, "/data/a.txt", files[0].Path)
}

func TestParseFindOutputEmpty(t *testing.T) {
	assert.Empty(t, parseFindOutput(""))
}
