package gord

import (
	"regexp"
	"strconv"
	"strings"

	"catalogscraper/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

func parseCategories(doc *goquery.Document) []Category {
	categories := []Category{}
	doc.Find(".facet_group_hidden").Each(func(_ int, group *goquery.Selection) {
		label := ""
		for _, node := range group.Find(".facet_group_label").Nodes {
			label += htmlutil.OwnText(node)
		}

		items := []string{}
		for _, node := range group.Find(".facet").Children().Nodes {
			items = append(items, htmlutil.CleanText(htmlutil.GetText(node)))
		}

		categories = append(categories, Category{
			Label: strings.TrimSpace(label),
			Items: items,
		})
	})
	return categories
}

// parsePageCount returns 0 when the page has no pagination.
func parsePageCount(doc *goquery.Document) (int, error) {
	text := strings.TrimSpace(doc.Find("#sidebar_pagination_top .last").Text())
	if text == "" {
		return 0, nil
	}
	return strconv.Atoi(text)
}

func parseShoots(doc *goquery.Document, page int) []Shoot {
	shoots := []Shoot{}
	doc.Find(".preview_listing").Each(func(i int, listing *goquery.Selection) {
		title := listing.Find(".preview_title")
		shoot := Shoot{
			Page:        page,
			Item:        i,
			Title:       htmlutil.CleanText(title.Text()),
			Ref:         title.AttrOr("href", ""),
			Description: htmlutil.CleanText(listing.Find(".preview_description").Text()),
			Media:       []Media{},
			Facets:      []string{},
		}

		listing.Find(".preview_feature_date").ChildrenFiltered("a").Each(func(_ int, entry *goquery.Selection) {
			kind, date, _ := strings.Cut(entry.Text(), "added")
			shoot.Media = append(shoot.Media, Media{
				Ref:  entry.AttrOr("href", ""),
				Type: strings.TrimSpace(kind),
				Date: strings.TrimSpace(date),
			})
		})

		listing.Find(".preview_facets_listing").ChildrenFiltered("a").Each(func(_ int, facet *goquery.Selection) {
			shoot.Facets = append(shoot.Facets, htmlutil.CleanText(facet.Text()))
		})

		shoots = append(shoots, shoot)
	})
	return shoots
}

var qualityRegex = regexp.MustCompile(`([^()]*)\(([^()]*)`)

func parseVideos(doc *goquery.Document) []Video {
	videos := []Video{}
	doc.Find(".element_video").Each(func(_ int, element *goquery.Selection) {
		video := Video{
			Name:      htmlutil.CleanText(element.Find("font").Text()),
			Default:   element.Find(".thumbnailed_media").AttrOr("href", ""),
			Qualities: []Quality{},
		}

		element.Find(".media_multifile_size").Each(func(_ int, size *goquery.Selection) {
			anchor := size.Find("a")
			groups := qualityRegex.FindStringSubmatch(anchor.Text())
			if len(groups) < 3 {
				return
			}
			video.Qualities = append(video.Qualities, Quality{
				Name: strings.TrimSpace(groups[1]),
				Size: strings.TrimSpace(groups[2]),
				Ref:  anchor.AttrOr("href", ""),
			})
		})

		videos = append(videos, video)
	})
	return videos
}
