// Package parser turns platform payloads (JSON APIs and share pages) into
// video.Record values.
package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"media-resolver-go/internal/debugger"
	"media-resolver-go/internal/video"
)

type Parser struct {
	// PlayURLTemplate is a URL whose first %s becomes the escaped video id.
	PlayURLTemplate string
	Debugger        *debugger.Debugger
}

func New(playURLTemplate string, dbg *debugger.Debugger) *Parser {
	return &Parser{PlayURLTemplate: playURLTemplate, Debugger: dbg}
}

var defaultParser = &Parser{}

func ParseItemList(body []byte) (video.Record, error) { return defaultParser.ParseItemList(body) }

func ParseAwemeDetail(body []byte) (video.Record, error) {
	return defaultParser.ParseAwemeDetail(body)
}

func ParseAny(body []byte) (video.Record, error) { return defaultParser.ParseAny(body) }

func ParseHTML(html, id string) (video.Record, error) {
	return defaultParser.ParseHTML(context.Background(), html, id)
}

// ParseItemList reads item_list[0].
func (p *Parser) ParseItemList(body []byte) (video.Record, error) {
	root, err := decodeObject(body)
	if err != nil {
		return video.Record{}, err
	}
	aweme := firstItem(root)
	if aweme == nil {
		return video.Record{}, video.Error{Kind: video.ErrorKindEmptyResult, Msg: "item_list is empty"}
	}
	return p.recordFromAweme(aweme), nil
}

// ParseAwemeDetail reads aweme_detail.
func (p *Parser) ParseAwemeDetail(body []byte) (video.Record, error) {
	root, err := decodeObject(body)
	if err != nil {
		return video.Record{}, err
	}
	aweme := getMap(root, "aweme_detail")
	if len(aweme) == 0 {
		return video.Record{}, video.Error{Kind: video.ErrorKindEmptyResult, Msg: "aweme_detail is empty"}
	}
	return p.recordFromAweme(aweme), nil
}

// ParseAny accepts either the item_list or the aweme_detail shape.
func (p *Parser) ParseAny(body []byte) (video.Record, error) {
	root, err := decodeObject(body)
	if err != nil {
		return video.Record{}, err
	}
	if aweme := getMap(root, "aweme_detail"); len(aweme) > 0 {
		return p.recordFromAweme(aweme), nil
	}
	if aweme := firstItem(root); aweme != nil {
		return p.recordFromAweme(aweme), nil
	}
	return video.Record{}, video.Error{Kind: video.ErrorKindEmptyResult, Msg: "no aweme_detail or item_list in payload"}
}

func firstItem(root map[string]any) map[string]any {
	items := getSlice(root, "item_list")
	if len(items) == 0 {
		return nil
	}
	aweme, _ := items[0].(map[string]any)
	if len(aweme) == 0 {
		return nil
	}
	return aweme
}

func decodeObject(body []byte) (map[string]any, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, video.Error{Kind: video.ErrorKindEmptyResult, Msg: "empty response body"}
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, video.Error{Kind: video.ErrorKindParse, Msg: "decode json", Err: err}
	}
	if out == nil {
		return nil, video.Error{Kind: video.ErrorKindEmptyResult, Msg: "null response body"}
	}
	return out, nil
}

func (p *Parser) recordFromAweme(aweme map[string]any) video.Record {
	v := getMap(aweme, "video")
	author := getMap(aweme, "author")
	stats := getMap(aweme, "statistics")
	music := getMap(aweme, "music")

	desc := strings.TrimSpace(getString(aweme, "desc"))
	rec := video.Record{
		ContentID:   getString(aweme, "aweme_id"),
		Title:       desc,
		Description: desc,
		Author:      getString(author, "nickname"),
		AuthorID:    firstNonEmpty(getString(author, "uid"), getString(author, "unique_id"), getString(author, "short_id"), getString(author, "sec_uid")),
		PublishTime: publishTime(aweme["create_time"]),
		MediaURL:    p.mediaURL(v),
		CoverURL:    coverURL(v),
		Duration:    getCount(v, "duration"),
		Width:       getCount(v, "width"),
		Height:      getCount(v, "height"),
		Statistics: video.Statistics{
			LikeCount:    getCount(stats, "digg_count"),
			CommentCount: getCount(stats, "comment_count"),
			ShareCount:   getCount(stats, "share_count"),
			PlayCount:    getCount(stats, "play_count"),
			CollectCount: getCount(stats, "collect_count"),
			ForwardCount: getCount(stats, "forward_count"),
		},
		Music: video.Music{
			Title:  getString(music, "title"),
			Author: getString(music, "author"),
			URL:    firstNonEmpty(firstURL(getMap(music, "play_url")), getString(getMap(music, "play_url"), "uri")),
		},
		Tags: textExtraTags(aweme),
	}
	if rec.Duration == 0 {
		rec.Duration = getCount(aweme, "duration")
	}
	return rec
}

func coverURL(v map[string]any) string {
	for _, key := range []string{"cover", "origin_cover", "dynamic_cover"} {
		if u := firstURL(getMap(v, key)); u != "" {
			return u
		}
	}
	return ""
}

func publishTime(v any) string {
	ts := toInt64(v)
	if ts <= 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

// textExtraTags keeps insertion order and duplicates.
func textExtraTags(aweme map[string]any) []string {
	tags := []string{}
	for _, item := range getSlice(aweme, "text_extra") {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if name := strings.TrimSpace(getString(m, "hashtag_name")); name != "" {
			tags = append(tags, name)
		}
	}
	return tags
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
