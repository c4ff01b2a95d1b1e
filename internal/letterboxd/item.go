package letterboxd

import (
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// ItemType classifies a feed entry.
type ItemType string

const (
	TypeReview  ItemType = "review"
	TypeWatch   ItemType = "watch"
	TypeRewatch ItemType = "rewatch"
	TypeUnknown ItemType = "unknown"
)

// Item is one parsed, classified activity entry from a member's feed. Items
// are immutable values living only for the duration of one poll cycle.
type Item struct {
	Type      ItemType
	Title     string
	FilmTitle string
	FilmYear  string
	Author    string
	Link      string
	GUID      string
	Rating    string
	PubDate   time.Time
}

// Notifiable reports whether the entry is one of the activity kinds the bot
// announces. Unknown shapes (lists, stories) are dropped.
func (i Item) Notifiable() bool {
	return i.Type == TypeReview || i.Type == TypeWatch || i.Type == TypeRewatch
}

// parseItem maps a raw feed entry onto an Item, reading the letterboxd:*
// extension fields the site attaches to diary entries. Unrecognized shapes
// classify as TypeUnknown, never fail.
func parseItem(fi *gofeed.Item) Item {
	it := Item{
		Title:     fi.Title,
		Link:      fi.Link,
		GUID:      fi.GUID,
		FilmTitle: extension(fi, "filmTitle"),
		FilmYear:  extension(fi, "filmYear"),
		Rating:    extension(fi, "memberRating"),
	}
	if fi.PublishedParsed != nil {
		it.PubDate = *fi.PublishedParsed
	}
	if fi.DublinCoreExt != nil && len(fi.DublinCoreExt.Creator) > 0 {
		it.Author = fi.DublinCoreExt.Creator[0]
	}

	it.Type = classify(fi, it)
	return it
}

func classify(fi *gofeed.Item, it Item) ItemType {
	watchedDate := extension(fi, "watchedDate")

	switch {
	case strings.EqualFold(extension(fi, "rewatch"), "yes"):
		return TypeRewatch
	case it.Rating != "" || strings.Contains(fi.GUID, "letterboxd-review"):
		return TypeReview
	case watchedDate != "" || strings.Contains(fi.GUID, "letterboxd-watch"):
		return TypeWatch
	default:
		return TypeUnknown
	}
}

func extension(fi *gofeed.Item, name string) string {
	fields, ok := fi.Extensions["letterboxd"]
	if !ok {
		return ""
	}
	values, ok := fields[name]
	if !ok || len(values) == 0 {
		return ""
	}
	return values[0].Value
}
