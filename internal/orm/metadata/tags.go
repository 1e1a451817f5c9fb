package metadata

import (
	"reflect"
	"strconv"
	"strings"
	"time"
)

// TagName is the struct tag key read during resolution
const TagName = "orm"

// tagSet is the parsed form of an `orm:"k=v;flag"` tag. Flags map to "true".
type tagSet map[string]string

func parseTag(field reflect.StructField) (tagSet, bool) {
	raw, ok := field.Tag.Lookup(TagName)
	if !ok {
		return nil, false
	}
	tags := make(tagSet)
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if !found {
			tags[key] = "true"
			continue
		}
		tags[key] = strings.TrimSpace(value)
	}
	return tags, true
}

func (t tagSet) has(key string) bool {
	_, ok := t[key]
	return ok
}

func (t tagSet) flag(key string) bool {
	v, ok := t[key]
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err != nil || b
}

func (t tagSet) get(key string) string {
	return t[key]
}

// cacheDuration reads `cache=<seconds>`; a bare `cache` flag keeps the default
func (t tagSet) cacheDuration() (time.Duration, bool) {
	v, ok := t["cache"]
	if !ok || v == "true" {
		return 0, false
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}
