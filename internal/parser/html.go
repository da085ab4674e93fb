package parser

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"media-resolver-go/internal/video"
)

var (
	reAwemeID     = regexp.MustCompile(`"aweme_id"\s*:\s*"?(\d{10,25})`)
	reDesc        = regexp.MustCompile(`"desc"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	reNickname    = regexp.MustCompile(`"nickname"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	reCreateTime  = regexp.MustCompile(`"create_time"\s*:\s*"?(\d+)`)
	reDigg        = regexp.MustCompile(`"digg_count"\s*:\s*"?(\d+)`)
	reComment     = regexp.MustCompile(`"comment_count"\s*:\s*"?(\d+)`)
	reShare       = regexp.MustCompile(`"share_count"\s*:\s*"?(\d+)`)
	rePlay        = regexp.MustCompile(`"play_count"\s*:\s*"?(\d+)`)
	reCollect     = regexp.MustCompile(`"collect_count"\s*:\s*"?(\d+)`)
	rePlayURI     = regexp.MustCompile(`"play_addr"\s*:\s*\{[^{}]*?"uri"\s*:\s*"([^"]+)"`)
	reCover       = regexp.MustCompile(`"cover"\s*:\s*\{[^{}]*?"url_list"\s*:\s*\[\s*"([^"]+)"`)
	reMusicTitle  = regexp.MustCompile(`"music"\s*:\s*\{[^{}]*?"title"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	reMusicAuthor = regexp.MustCompile(`"music"\s*:\s*\{[^{}]*?"author"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	reHashtag     = regexp.MustCompile(`"hashtag_name"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

type pageMeta struct {
	title       string
	description string
	author      string
}

// ParseHTML extracts a record from a share page. Embedded state blobs are
// preferred; page-text patterns are the last resort.
func (p *Parser) ParseHTML(ctx context.Context, html, id string) (video.Record, error) {
	if strings.TrimSpace(html) == "" {
		return video.Record{}, video.Error{Kind: video.ErrorKindEmptyResult, Msg: "empty page"}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		p.Debugger.DataParsing(ctx, "html", nil, err)
		doc = nil
	}
	meta := readMeta(doc, html)

	for _, cand := range blobCandidates {
		raw, err := cand.extract(doc, html)
		if errors.Is(err, errBlobNotFound) {
			continue
		}
		if err != nil {
			p.Debugger.DataParsing(ctx, "html:"+cand.name, nil, err)
			continue
		}
		blob, err := decodeBlob(raw)
		if err != nil {
			p.Debugger.DataParsing(ctx, "html:"+cand.name, nil, err)
			continue
		}
		aweme := findAweme(blob, id, 0)
		if aweme == nil {
			p.Debugger.DataParsing(ctx, "html:"+cand.name, nil, errors.New("no aweme object in blob"))
			continue
		}
		rec := p.recordFromAweme(aweme)
		fillFromMeta(&rec, meta, id)
		p.Debugger.DataParsing(ctx, "html:"+cand.name, map[string]any{"id": rec.ContentID}, nil)
		return rec, nil
	}

	rec := p.recordFromText(html, id)
	fillFromMeta(&rec, meta, id)
	if isEmptyRecord(rec) {
		return video.Record{}, video.Error{Kind: video.ErrorKindEmptyResult, Msg: "no video data in page"}
	}
	p.Debugger.DataParsing(ctx, "html:text", map[string]any{"id": rec.ContentID}, nil)
	return rec, nil
}

func readMeta(doc *goquery.Document, html string) pageMeta {
	var m pageMeta
	if doc != nil {
		m.title = cleanTitle(doc.Find("title").First().Text())
		if content, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
			m.description = strings.TrimSpace(content)
		}
		if m.description == "" {
			if d, ok := doc.Find("[data-desc]").First().Attr("data-desc"); ok {
				m.description = strings.TrimSpace(d)
			}
		}
		if a, ok := doc.Find("[data-author]").First().Attr("data-author"); ok {
			m.author = strings.TrimSpace(a)
		}
	}
	if m.author == "" {
		m.author = firstMatch(reNickname, html)
	}
	return m
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	for _, suffix := range []string{" - 抖音", "- 抖音", " - Douyin"} {
		s = strings.TrimSuffix(s, suffix)
	}
	return strings.TrimSpace(s)
}

func (p *Parser) recordFromText(html, id string) video.Record {
	rec := video.Record{
		ContentID:   id,
		Description: firstMatch(reDesc, html),
		PublishTime: publishTime(firstMatch(reCreateTime, html)),
		Statistics: video.Statistics{
			LikeCount:    toCount(firstMatch(reDigg, html)),
			CommentCount: toCount(firstMatch(reComment, html)),
			ShareCount:   toCount(firstMatch(reShare, html)),
			PlayCount:    toCount(firstMatch(rePlay, html)),
			CollectCount: toCount(firstMatch(reCollect, html)),
		},
		CoverURL: firstMatch(reCover, html),
		Music: video.Music{
			Title:  firstMatch(reMusicTitle, html),
			Author: firstMatch(reMusicAuthor, html),
		},
		Tags: []string{},
	}
	if rec.ContentID == "" {
		rec.ContentID = firstMatch(reAwemeID, html)
	}
	if uri := firstMatch(rePlayURI, html); uri != "" {
		rec.MediaURL = p.playURL(uri)
	}
	for _, m := range reHashtag.FindAllStringSubmatch(html, -1) {
		if tag := strings.TrimSpace(unescapeJS(m[1])); tag != "" {
			rec.Tags = append(rec.Tags, tag)
		}
	}
	return rec
}

func fillFromMeta(rec *video.Record, meta pageMeta, id string) {
	if rec.ContentID == "" {
		rec.ContentID = id
	}
	if rec.Description == "" {
		rec.Description = meta.description
	}
	if rec.Title == "" {
		rec.Title = firstNonEmpty(meta.title, rec.Description)
	}
	if rec.Author == "" {
		rec.Author = meta.author
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
}

func isEmptyRecord(rec video.Record) bool {
	return rec.Title == "" && rec.Description == "" && rec.MediaURL == "" &&
		rec.CoverURL == "" && rec.Statistics == (video.Statistics{})
}

func firstMatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return unescapeJS(m[1])
}

// unescapeJS decodes JSON string escapes such as \u002F. The raw text is
// returned when it is not a valid JSON string body.
func unescapeJS(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return s
	}
	return out
}
