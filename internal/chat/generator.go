package chat

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/mirag/ragchat/internal/rag"
)

// VertexGenerator generates replies through the Vertex AI Gemini API with a
// RAG retrieval tool scoped to the bound corpus.
type VertexGenerator struct {
	client   *genai.Client
	project  string
	location string

	topK              int32
	distanceThreshold float64
}

// NewVertexGenerator wraps a genai client configured for the Vertex backend.
// topK and distanceThreshold fix the retrieval parameters for every session.
func NewVertexGenerator(client *genai.Client, project, location string, topK int, distanceThreshold float64) *VertexGenerator {
	return &VertexGenerator{
		client:            client,
		project:           project,
		location:          location,
		topK:              int32(topK),
		distanceThreshold: distanceThreshold,
	}
}

// Generate sends the conversation to the model and extracts the reply text
// and its retrieved-context citations, in service order and without
// deduplication.
func (g *VertexGenerator) Generate(ctx context.Context, binding Binding, history []Message, prompt string) (Reply, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		var role genai.Role = genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))

	cfg := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{
			Retrieval: &genai.Retrieval{
				VertexRAGStore: &genai.VertexRAGStore{
					RAGResources: []*genai.VertexRAGStoreRAGResource{{
						RAGCorpus: rag.CorpusResource(g.project, g.location, binding.CorpusID),
					}},
					SimilarityTopK:          genai.Ptr(g.topK),
					VectorDistanceThreshold: genai.Ptr(g.distanceThreshold),
				},
			},
		}},
	}
	if binding.Instruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(binding.Instruction, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, binding.Model, contents, cfg)
	if err != nil {
		return Reply{}, fmt.Errorf("vertex generate content: %w", err)
	}

	reply := Reply{Text: resp.Text()}
	if len(resp.Candidates) > 0 && resp.Candidates[0].GroundingMetadata != nil {
		for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
			rc := chunk.RetrievedContext
			if rc == nil {
				continue
			}
			reply.Sources = append(reply.Sources, Source{URI: rc.URI, Title: rc.Title, Text: rc.Text})
		}
	}
	return reply, nil
}
