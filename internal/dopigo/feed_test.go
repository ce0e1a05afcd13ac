package dopigo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<root>
  <categories>
    <list-item>
      <category>
        <id>12</id>
        <name>T-Shirt</name>
        <root><name>Giyim</name></root>
      </category>
    </list-item>
    <list-item>
      <category><id>13</id><name>Ayakkabı</name></category>
      <full_category_path>Giyim &gt; Spor &gt; Ayakkabı</full_category_path>
    </list-item>
    <list-item><other>skip</other></list-item>
  </categories>
</root>`

func TestParseCategoryFeed(t *testing.T) {
	cats, err := ParseCategoryFeed(strings.NewReader(sampleFeed))
	require.NoError(t, err)
	require.Len(t, cats, 2)

	assert.Equal(t, int64(12), cats[0].ID)
	assert.Equal(t, "Giyim > T-Shirt", cats[0].Path())

	assert.Equal(t, int64(13), cats[1].ID)
	assert.Equal(t, "Giyim > Spor > Ayakkabı", cats[1].Path())
}

func TestParseCategoryFeedLatin(t *testing.T) {
	// "Łódź" w ISO-8859-2
	raw := "<?xml version=\"1.0\" encoding=\"latin2\"?><root><list-item><category><id>1</id><name>\xa3\xf3d\xbc</name></category></list-item></root>"
	cats, err := ParseCategoryFeed(strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "Łódź", cats[0].Name)
}

func TestParseCategoryFeedMalformed(t *testing.T) {
	_, err := ParseCategoryFeed(strings.NewReader("<root><list-item>"))
	assert.Error(t, err)
}

func TestNormalizeCharset(t *testing.T) {
	assert.Equal(t, "iso-8859-2", NormalizeCharset(" Latin2 "))
	assert.Equal(t, "windows-1254", NormalizeCharset("cp1254"))
	assert.Equal(t, "utf-8", NormalizeCharset("UTF-8"))
}
