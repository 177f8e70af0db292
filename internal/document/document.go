// Package document flattens vision results into the search index schema.
package document

import (
	"encoding/json"
	"strings"

	"visionqa-gateway/internal/vision"
)

const (
	FileTypeImage   = "image"
	FileTypeUnknown = "unknown"

	unsupportedContent = "Kindly upload files in image format."
	unsupportedError   = "Non-image content provided"
)

// ImageResult is the analysis of one image inside an uploaded blob.
type ImageResult struct {
	ImageIndex     int             `json:"image_index"`
	BlobName       string          `json:"blob_name"`
	VisionAnalyzed vision.Analysis `json:"vision_analyzed"`
}

type Results struct {
	Image []ImageResult `json:"image,omitempty"`
}

// Content is the processed output for one blob prior to flattening.
type Content struct {
	BlobName string  `json:"blob_name"`
	FileType string  `json:"file_type"`
	Results  Results `json:"results"`
}

// NewImageContent wraps a single image analysis.
func NewImageContent(blobName string, a vision.Analysis) Content {
	return Content{
		BlobName: blobName,
		FileType: FileTypeImage,
		Results: Results{Image: []ImageResult{{
			ImageIndex:     0,
			BlobName:       blobName,
			VisionAnalyzed: a,
		}}},
	}
}

type Metadata struct {
	Captions []string `json:"captions"`
	Tags     []string `json:"tags"`
	Objects  []string `json:"objects"`
	OCRText  []string `json:"ocr_text"`
	Error    string   `json:"error,omitempty"`
}

// MarshalJSON writes the lists as arrays, never null. The non-image
// fallback carries only its error.
func (m Metadata) MarshalJSON() ([]byte, error) {
	if m.Error != "" && m.Captions == nil && m.Tags == nil && m.Objects == nil && m.OCRText == nil {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{m.Error})
	}
	type lists Metadata
	out := lists{
		Captions: orEmpty(m.Captions),
		Tags:     orEmpty(m.Tags),
		Objects:  orEmpty(m.Objects),
		OCRText:  orEmpty(m.OCRText),
		Error:    m.Error,
	}
	return json.Marshal(out)
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Document is the flattened record stored in the search index.
type Document struct {
	ID       string   `json:"id"`
	BlobName string   `json:"blob_name"`
	FileType string   `json:"file_type"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// IDFor maps a blob name to a search document key.
func IDFor(blobName string) string {
	return strings.NewReplacer("/", "_", ".", "_").Replace(blobName)
}

// Flatten collapses per-image analyses into one searchable document.
// Tags and object names are de-duplicated keeping first-seen order.
func Flatten(blobName string, c Content) Document {
	doc := Document{
		ID:       IDFor(blobName),
		BlobName: blobName,
		FileType: c.FileType,
	}
	if doc.FileType == "" {
		doc.FileType = FileTypeUnknown
	}

	if c.Results.Image == nil {
		doc.Content = unsupportedContent
		doc.Metadata = Metadata{Error: unsupportedError}
		return doc
	}

	captions, texts := []string{}, []string{}
	var tags, objects []string
	for _, img := range c.Results.Image {
		v := img.VisionAnalyzed
		if v.Caption != "" {
			captions = append(captions, v.Caption)
		}
		texts = append(texts, v.Text...)
		tags = append(tags, v.Tags...)
		for _, o := range v.Objects {
			objects = append(objects, o.Name)
		}
	}

	var sections []string
	add := func(label string, items []string) {
		if len(items) > 0 {
			sections = append(sections, label+strings.Join(items, " | "))
		}
	}
	add("Image descriptions: ", captions)
	add("Extracted text: ", texts)
	add("Tags: ", tags)
	add("Detected objects: ", objects)

	doc.Content = strings.Join(sections, "\n\n")
	doc.Metadata = Metadata{
		Captions: captions,
		Tags:     dedupe(tags),
		Objects:  dedupe(objects),
		OCRText:  texts,
	}
	return doc
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
