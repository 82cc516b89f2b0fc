package gord

import (
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func mustDocument(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestParseCategories(t *testing.T) {
	doc := mustDocument(t, rootHTML)
	expected := []Category{
		{Label: "Setting", Items: []string{"Dungeon", "Outdoor"}},
		{Label: "Material", Items: []string{"Rubber", "Leather", "Rope"}},
	}
	diff := cmp.Diff(expected, parseCategories(doc))
	if diff != "" {
		t.Fatal("unexpected categories", diff)
	}
}

func TestParsePageCount(t *testing.T) {
	pages, err := parsePageCount(mustDocument(t, rootHTML))
	require.NoError(t, err)
	require.Equal(t, 3, pages)

	pages, err = parsePageCount(mustDocument(t, fmt.Sprintf(pageHTML, 2)))
	require.NoError(t, err)
	require.Equal(t, 0, pages)
}

func TestParseShoots(t *testing.T) {
	expected := []Shoot{
		{
			Page:        0,
			Item:        0,
			Title:       "Rubber Cell",
			Ref:         "/shoots/101-rubber-cell",
			Description: "A long afternoon in the cell.",
			Media: []Media{
				{Ref: "/shoots/101-rubber-cell/videos", Type: "Video", Date: "2019-03-01"},
				{Ref: "/shoots/101-rubber-cell/photos", Type: "Photos", Date: "2019-03-02"},
			},
			Facets: []string{"Rubber", "Dungeon"},
		},
		{
			Page:  0,
			Item:  1,
			Title: "Field Day",
			Ref:   "/shoots/102-field-day",
			Media: []Media{
				{Ref: "/shoots/102-field-day/photos", Type: "Photos", Date: "2019-02-14"},
			},
			Facets: []string{"Outdoor", "Rope"},
		},
	}
	diff := cmp.Diff(expected, parseShoots(mustDocument(t, rootHTML), 0))
	if diff != "" {
		t.Fatal("unexpected shoots", diff)
	}
}

func TestParseVideos(t *testing.T) {
	expected := []Video{
		{
			Name:    "Part One",
			Default: "/media/101/part-one.mp4",
			Qualities: []Quality{
				{Name: "HD 1080p", Size: "1.2 GB", Ref: "/media/101/part-one-hd.mp4"},
				{Name: "SD", Size: "350 MB", Ref: "/media/101/part-one-sd.mp4"},
			},
		},
		{
			Name:    "Part Two",
			Default: "/media/101/part-two.mp4",
			Qualities: []Quality{
				{Name: "HD 1080p", Size: "900 MB", Ref: "/media/101/part-two-hd.mp4"},
			},
		},
	}
	diff := cmp.Diff(expected, parseVideos(mustDocument(t, videosHTML)))
	if diff != "" {
		t.Fatal("unexpected videos", diff)
	}
}

func TestAuthenticityToken(t *testing.T) {
	require.Equal(t, "R4nd0mT0k3n==", authenticityToken(mustDocument(t, fmt.Sprintf(loginHTML, ""))))
	require.Equal(t, "", authenticityToken(mustDocument(t, "<html></html>")))
}

func TestLoginForm(t *testing.T) {
	body := loginForm("tok+en==", "some one", "p&ss", "48213")
	require.Equal(
		t,
		"utf8=%E2%9C%93&commit=Login&authenticity_token=tok%2Ben%3D%3D&captcha=48213&login=some+one&password=p%26ss",
		body,
	)
}

func TestMarkerDetector(t *testing.T) {
	detector := DefaultDetector()

	credentials := []byte(fmt.Sprintf(loginHTML, marker_invalid_credentials))
	require.True(t, detector.InvalidCredentials(credentials))
	require.False(t, detector.CaptchaMismatch(credentials))

	captcha := []byte(fmt.Sprintf(loginHTML, marker_captcha_mismatch))
	require.False(t, detector.InvalidCredentials(captcha))
	require.True(t, detector.CaptchaMismatch(captcha))

	require.False(t, MarkerDetector{}.InvalidCredentials(credentials))
}

func TestMatchFacet(t *testing.T) {
	shoots := parseShoots(mustDocument(t, rootHTML), 0)

	matched := MatchFacet(shoots, "rubbr", 0.9)
	require.Len(t, matched, 1)
	require.Equal(t, "Rubber Cell", matched[0].Title)

	matched = MatchFacet(shoots, "ROPE", 0.99)
	require.Len(t, matched, 1)
	require.Equal(t, "Field Day", matched[0].Title)

	require.Empty(t, MatchFacet(shoots, "latex", 0.9))
}
