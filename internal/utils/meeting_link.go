// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
)

// urlPattern matches HTTP and HTTPS URLs
var urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

// ExtractRoomIdentifier returns the room named by a meeting link: the path
// segment following engineHost. Fragments, query strings and surrounding
// whitespace are ignored. A link may also be embedded in free text, in which
// case the first URL on engineHost is used.
//
// It returns domain.ErrNoRoomIdentifier when no room can be derived; callers
// fall back to opening the raw link externally.
func ExtractRoomIdentifier(link, engineHost string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" || engineHost == "" {
		return "", domain.ErrNoRoomIdentifier
	}

	candidates := urlPattern.FindAllString(link, -1)
	if len(candidates) == 0 {
		// scheme-less links such as "meet.jit.si/room"
		candidates = []string{"https://" + link}
	}

	for _, candidate := range candidates {
		room, ok := roomFromURL(cleanTrailingPunctuation(candidate), engineHost)
		if ok {
			return room, nil
		}
	}

	return "", fmt.Errorf("%w: %s", domain.ErrNoRoomIdentifier, link)
}

func roomFromURL(raw, engineHost string) (string, bool) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	if !strings.EqualFold(parsed.Hostname(), engineHost) {
		return "", false
	}

	segment, _, _ := strings.Cut(strings.TrimPrefix(parsed.Path, "/"), "/")
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return "", false
	}

	room, err := url.PathUnescape(segment)
	if err != nil || strings.TrimSpace(room) == "" {
		return "", false
	}
	return room, true
}

// cleanTrailingPunctuation removes sentence punctuation captured at the end of a URL
func cleanTrailingPunctuation(raw string) string {
	return strings.TrimRight(raw, ".,!?;:)]}")
}
