package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	require.NoError(t, err)
	return doc
}

func TestCleanText(t *testing.T) {
	require.Equal(t, "Video added Jan 1, 2020", CleanText("\n\t Video   added\n Jan 1, 2020 \u0000"))
	require.Equal(t, "", CleanText(" \n "))
}

func TestOwnText(t *testing.T) {
	doc := parse(t, `<div class="label">Setting <span>(12)</span></div>`)
	node := doc.Find(".label").Get(0)
	require.Equal(t, "Setting ", OwnText(node))
	require.Equal(t, "Setting (12)", GetText(node))
}
