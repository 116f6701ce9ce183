package rag

import (
	"fmt"
	"strings"
)

// Corpus is a Vertex AI RAG corpus as returned by the service.
type Corpus struct {
	// Name is the full resource name:
	// projects/{project}/locations/{location}/ragCorpora/{corpus}.
	Name string `json:"name"`

	// DisplayName is the human-readable corpus name.
	DisplayName string `json:"displayName"`
}

// ID returns the corpus identifier, the last segment of the resource name.
func (c Corpus) ID() string {
	return lastSegment(c.Name)
}

// File is a document imported into a RAG corpus.
type File struct {
	// Name is the full resource name:
	// projects/{project}/locations/{location}/ragCorpora/{corpus}/ragFiles/{file}.
	Name string `json:"name"`

	// DisplayName is the file name the document was uploaded under.
	DisplayName string `json:"displayName"`

	// SizeBytes is the document size. The API serializes int64 as a string.
	SizeBytes string `json:"sizeBytes,omitempty"`

	// CreateTime is the RFC 3339 import timestamp.
	CreateTime string `json:"createTime,omitempty"`
}

// ID returns the file identifier, the last segment of the resource name.
func (f File) ID() string {
	return lastSegment(f.Name)
}

// CorpusResource builds the full resource name for a corpus ID.
func CorpusResource(project, location, corpusID string) string {
	return fmt.Sprintf("projects/%s/locations/%s/ragCorpora/%s", project, location, corpusID)
}

// FileResource builds the full resource name for a file within a corpus.
func FileResource(project, location, corpusID, fileID string) string {
	return CorpusResource(project, location, corpusID) + "/ragFiles/" + fileID
}

func lastSegment(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}
