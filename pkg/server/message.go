// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
)

var (
	// ErrNoMessage is returned for requests without a message.
	ErrNoMessage = errors.New("message should be present in request context")

	// ErrUnsupportedFile is returned for files referenced by URI.
	ErrUnsupportedFile = errors.New("only local file uploads are supported")

	// ErrUnsupportedImageType is returned for images outside the allowed MIME types.
	ErrUnsupportedImageType = errors.New("unsupported image type")

	// ErrFileTooLarge is returned for images above the upload limit.
	ErrFileTooLarge = errors.New("image exceeds the upload limit")

	// ErrEmptyFile is returned for file parts without content.
	ErrEmptyFile = errors.New("file part has no content")
)

const defaultImageMimeType = "image/jpeg"

// Image is an uploaded image.
type Image struct {
	Data     []byte
	MimeType string
	Name     string
}

// userInput is what a turn needs from an inbound message.
type userInput struct {
	Text  string
	Image *Image
}

// uploadLimits constrains attached images.
type uploadLimits struct {
	MaxBytes         int
	AllowedMimeTypes []string
}

// parseMessage decodes the parts of an inbound message. Text parts are
// joined with newlines. Only the first file part is used and it must carry
// inline bytes.
func parseMessage(msg *a2a.Message, limits uploadLimits) (*userInput, error) {
	if msg == nil {
		return nil, ErrNoMessage
	}

	in := &userInput{}
	var texts []string
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case a2a.TextPart:
			if strings.TrimSpace(p.Text) != "" {
				texts = append(texts, p.Text)
			}
		case a2a.FilePart:
			if in.Image != nil {
				continue
			}
			img, err := decodeFile(p, limits)
			if err != nil {
				return nil, err
			}
			in.Image = img
		}
	}
	in.Text = strings.Join(texts, "\n")
	return in, nil
}

func decodeFile(p a2a.FilePart, limits uploadLimits) (*Image, error) {
	var (
		raw  string
		meta a2a.FileMeta
	)
	switch f := p.File.(type) {
	case a2a.FileBytes:
		raw, meta = f.Bytes, f.FileMeta
	case a2a.FileURI:
		return nil, ErrUnsupportedFile
	default:
		return nil, fmt.Errorf("%w: %T", ErrEmptyFile, p.File)
	}
	if raw == "" {
		return nil, ErrEmptyFile
	}

	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		data = []byte(raw)
	}

	mime := meta.MimeType
	if mime == "" {
		mime = defaultImageMimeType
	}
	if len(limits.AllowedMimeTypes) > 0 && !slices.Contains(limits.AllowedMimeTypes, mime) {
		return nil, fmt.Errorf("%w: %s (supported: %s)", ErrUnsupportedImageType, mime, strings.Join(limits.AllowedMimeTypes, ", "))
	}
	if limits.MaxBytes > 0 && len(data) > limits.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, len(data), limits.MaxBytes)
	}
	return &Image{Data: data, MimeType: mime, Name: meta.Name}, nil
}

// userIDFrom returns the user_id message metadata, or "".
func userIDFrom(msg *a2a.Message) string {
	if msg == nil || msg.Metadata == nil {
		return ""
	}
	uid, _ := msg.Metadata["user_id"].(string)
	return uid
}
