package usecase

import (
	"math"
	"strings"
	"time"

	"CivicScanner/internal/domain"
)

const whatChangesCount = 3

// ToCivicDocument maps a summary into the persisted feed shape. It is total:
// every list is non-nil, the title is non-empty, and uncertainty is in [0,1].
func ToCivicDocument(item domain.SummaryResult, sourceLabel, userID string, extraTags []string, now time.Time) domain.CivicDocument {
	url := sourceLabel
	if url == "" {
		url = item.SourceURL
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = domain.DefaultTitle
	}

	highlights := nonNil(item.Highlights)
	changes := highlights
	if len(changes) > whatChangesCount {
		changes = changes[:whatChangesCount]
	}

	return domain.CivicDocument{
		UserID:                  userID,
		URL:                     url,
		Title:                   title,
		TLDR:                    item.WhyMatters,
		WhatChanges:             append([]string{}, changes...),
		WhatResidentsShouldKnow: append([]string{}, highlights...),
		ActionsForResidents:     append([]string{}, nonNil(item.Actions)...),
		Tags:                    MergeTags(item.Tags, extraTags),
		Uncertainty:             clampUncertainty(item.Uncertainty),
		FetchedAt:               now.UTC().Format(time.RFC3339),
	}
}

// MergeTags concatenates tag lists, dropping blanks and repeats in first-seen order.
func MergeTags(lists ...[]string) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, list := range lists {
		for _, tag := range list {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			key := strings.ToLower(tag)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}

func clampUncertainty(u *float64) float64 {
	if u == nil || math.IsNaN(*u) {
		return domain.DefaultUncertainty
	}
	return math.Min(1, math.Max(0, *u))
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
