// Package rss renders the RSS 2.0 documents published in the output
// directory.
package rss

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"time"
)

const contentNamespace = "http://purl.org/rss/1.0/modules/content/"

type document struct {
	XMLName   xml.Name `xml:"rss"`
	Version   string   `xml:"version,attr"`
	ContentNS string   `xml:"xmlns:content,attr"`
	Channel   channel  `xml:"channel"`
}

type channel struct {
	Title         string `xml:"title"`
	Link          string `xml:"link"`
	Description   string `xml:"description"`
	LastBuildDate string `xml:"lastBuildDate"`
	Items         []item `xml:"item"`
}

type item struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	GUID        guid     `xml:"guid"`
	PubDate     string   `xml:"pubDate"`
	Description string   `xml:"description"`
	Content     *content `xml:"content:encoded,omitempty"`
}

type guid struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type content struct {
	Value string `xml:",cdata"`
}

// Item is a generic feed entry.
type Item struct {
	Title       string
	Link        string
	GUID        string
	PermaLink   bool
	PubDate     time.Time
	Description string
	// HTML, when set, is published as content:encoded.
	HTML string
}

// Channel is a generic feed.
type Channel struct {
	Title       string
	Link        string
	Description string
	BuiltAt     time.Time
	Items       []Item
}

// BuildChannelFeed renders ch as an RSS 2.0 document. Items are written in
// the given order.
func BuildChannelFeed(ch Channel) ([]byte, error) {
	doc := document{
		Version:   "2.0",
		ContentNS: contentNamespace,
		Channel: channel{
			Title:         ch.Title,
			Link:          ch.Link,
			Description:   ch.Description,
			LastBuildDate: formatDate(ch.BuiltAt),
			Items:         make([]item, 0, len(ch.Items)),
		},
	}
	for _, it := range ch.Items {
		x := item{
			Title:       it.Title,
			Link:        it.Link,
			GUID:        guid{IsPermaLink: it.PermaLink, Value: it.GUID},
			PubDate:     formatDate(it.PubDate),
			Description: it.Description,
		}
		if it.HTML != "" {
			x.Content = &content{Value: it.HTML}
		}
		doc.Channel.Items = append(doc.Channel.Items, x)
	}
	return encode(doc)
}

func encode(doc document) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("rss: encode: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// formatDate renders t as an RFC 1123 date with numeric zone.
func formatDate(t time.Time) string {
	return t.Format(time.RFC1123Z)
}
