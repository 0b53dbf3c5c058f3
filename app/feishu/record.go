package feishu

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Semior001/bitable-publisher/app/store"
	"github.com/samber/lo"
)

// Field names of the articles table.
const (
	FieldTitle       = "article_title"
	FieldSlug        = "article_slug"
	FieldContent     = "article_content"
	FieldPublishDate = "publish_date"
	FieldTags        = "tags"
	FieldPublished   = "is_published"
)

// ErrNoPublishDate is returned when a record has no publish date.
var ErrNoPublishDate = errors.New("no publish date")

// Record is a single row of a bitable table.
type Record struct {
	ID     string                     `json:"record_id"`
	Fields map[string]json.RawMessage `json:"fields"`
}

// ParseRecord builds an article from the record fields.
// Text fields and tags are taken as is and fall back to empty values,
// the publish date is required.
func ParseRecord(rec Record) (store.Article, error) {
	published, err := parseDate(rec.Fields[FieldPublishDate])
	if err != nil {
		return store.Article{}, fmt.Errorf("parse %s of record %q: %w", FieldPublishDate, rec.ID, err)
	}

	return store.Article{
		RecordID:    rec.ID,
		Title:       parseText(rec.Fields[FieldTitle]),
		Slug:        parseText(rec.Fields[FieldSlug]),
		Content:     parseText(rec.Fields[FieldContent]),
		PublishDate: published,
		Tags:        parseTags(rec.Fields[FieldTags]),
	}, nil
}

// segment is a piece of a rich text cell.
type segment struct {
	Text string `json:"text"`
}

// parseText accepts either a plain string or a list of rich text segments.
func parseText(raw json.RawMessage) string {
	if isEmpty(raw) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var segments []segment
	if err := json.Unmarshal(raw, &segments); err == nil {
		return strings.Join(lo.Map(segments, func(s segment, _ int) string { return s.Text }), "")
	}

	return ""
}

// parseTags accepts a multi-select list or a single option.
func parseTags(raw json.RawMessage) []string {
	if isEmpty(raw) {
		return []string{}
	}

	tags := []string{}
	if err := json.Unmarshal(raw, &tags); err == nil {
		return tags
	}

	var tag string
	if err := json.Unmarshal(raw, &tag); err == nil && tag != "" {
		return []string{tag}
	}

	return []string{}
}

// parseDate accepts milliseconds since epoch, as a number or a numeric string.
func parseDate(raw json.RawMessage) (time.Time, error) {
	if isEmpty(raw) {
		return time.Time{}, ErrNoPublishDate
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return time.Time{}, fmt.Errorf("decode: %w", err)
	}

	var num string
	switch v := v.(type) {
	case json.Number:
		num = v.String()
	case string:
		num = strings.TrimSpace(v)
	default:
		return time.Time{}, fmt.Errorf("unexpected value %s", raw)
	}

	ms, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(num, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return time.Time{}, fmt.Errorf("parse timestamp %q: %w", num, err)
		}
		// float64 can't hold MaxInt64 exactly, the upper bound is exclusive
		if f < math.MinInt64 || f >= math.MaxInt64 {
			return time.Time{}, fmt.Errorf("timestamp %q out of range", num)
		}
		ms = int64(f)
	}

	return time.UnixMilli(ms).UTC(), nil
}

func isEmpty(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
