package main

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

var (
	slugStrip  = regexp.MustCompile(`[^\w\s-]`)
	slugSpaces = regexp.MustCompile(`[\s_]+`)
	slugDashes = regexp.MustCompile(`-+`)
)

const defaultSlug = "board"

// slugify lowercases title and reduces it to [a-z0-9-] without leading or
// trailing hyphens.
func slugify(title string) string {
	s := strings.TrimSpace(strings.ToLower(title))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSpaces.ReplaceAllString(s, "-")
	s = slugDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// uniqueSlug derives the slug for title, appending -1, -2, ... until taken
// reports the candidate free.
func uniqueSlug(ctx context.Context, title string, taken func(context.Context, string) (bool, error)) (string, error) {
	base := slugify(title)
	if base == "" {
		base = defaultSlug
	}
	slug := base
	for n := 1; ; n++ {
		used, err := taken(ctx, slug)
		if err != nil {
			return "", err
		}
		if !used {
			return slug, nil
		}
		slug = base + "-" + strconv.Itoa(n)
	}
}
