/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package library

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/bogem/id3v2"
)

// FileValidator reports whether a track path is currently loadable.
type FileValidator struct{}

// Validate checks that path is an existing, non-empty regular file.
func (FileValidator) Validate(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular() && info.Size() > 0, nil
}

// ID3Reader reads artist/title/album tags from audio files.
type ID3Reader struct{}

// ReadTags parses the ID3 tag at path.
func (ID3Reader) ReadTags(ctx context.Context, path string) (*Tags, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("open tag %s: %w", path, err)
	}
	defer tag.Close()

	tags := &Tags{
		Title:  strings.TrimSpace(tag.Title()),
		Artist: strings.TrimSpace(tag.Artist()),
		Album:  strings.TrimSpace(tag.Album()),
	}
	// TPE2 carries the album artist when the lead artist frame is empty.
	if tags.Artist == "" {
		tags.Artist = strings.TrimSpace(tag.GetTextFrame(tag.CommonID("Band/Orchestra/Accompaniment")).Text)
	}
	return tags, nil
}
