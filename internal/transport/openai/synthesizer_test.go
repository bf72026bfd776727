package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/evidex/internal/domain"
	"github.com/kailas-cloud/evidex/internal/domain/document"
	"github.com/kailas-cloud/evidex/internal/domain/evidence"
)

func evidenceItem(engineID, id, title, snippet string, rank int, score float64) evidence.Item {
	doc := document.Reconstruct(
		id, engineID, title, snippet,
		"School Education Dept", "Section 10", "https://example.gov.in/"+id,
		time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC), score,
	)
	return evidence.Reconstruct(doc, rank, score, nil)
}

func TestSynthesizer_Synthesize(t *testing.T) {
	var gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
		}
		if len(req.Messages) == 2 {
			gotPrompt = req.Messages[1].Content
		}

		resp := chatResponse{ID: "chatcmpl-2", Object: "chat.completion"}
		resp.Choices = append(resp.Choices, struct {
			Index   int `json:"index"`
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		}{FinishReason: "stop"})
		resp.Choices[0].Message.Role = "assistant"
		resp.Choices[0].Message.Content = "Teachers may request transfer after 3 years [legal:rule-10:Section 10]."
		resp.Usage.TotalTokens = 200

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	s := NewSynthesizer(&Config{
		APIKey:           "test-key",
		BaseURL:          server.URL,
		SynthesizerModel: "test-model",
		Logger:           zap.NewNop(),
	})

	evid := []evidence.Item{
		evidenceItem("legal", "rule-10", "AP Education Service Rules", "Transfer after 3 years of service.", 1, 0.95),
		evidenceItem("gos", "go-45", "GO Ms No 45", "Implements the transfer policy.", 2, 0.9),
	}

	answer, err := s.Synthesize(context.Background(), "teacher transfer rules", evid)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if !strings.Contains(answer, "[legal:rule-10:Section 10]") {
		t.Errorf("answer = %q", answer)
	}

	if !strings.Contains(gotPrompt, "Query: teacher transfer rules") {
		t.Errorf("prompt missing query: %q", gotPrompt)
	}
	for _, header := range []string{"[legal:rule-10:Section 10]", "[gos:go-45:Section 10]", "(Date: 2023-01-15)"} {
		if !strings.Contains(gotPrompt, header) {
			t.Errorf("prompt missing %q", header)
		}
	}
}

func TestSynthesizer_EmptyEvidence(t *testing.T) {
	s := NewSynthesizer(&Config{
		APIKey:           "test-key",
		BaseURL:          "http://unused",
		SynthesizerModel: "test-model",
		Logger:           zap.NewNop(),
	})

	_, err := s.Synthesize(context.Background(), "anything", nil)
	if !errors.Is(err, domain.ErrSynthesisFailed) {
		t.Fatalf("error = %v, want ErrSynthesisFailed", err)
	}
}

func TestSynthesizer_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{"detail": "model overloaded"})
	}))
	defer server.Close()

	s := NewSynthesizer(&Config{
		APIKey:           "test-key",
		BaseURL:          server.URL,
		SynthesizerModel: "test-model",
		Logger:           zap.NewNop(),
	})

	evid := []evidence.Item{evidenceItem("legal", "rule-10", "Rules", "text", 1, 0.9)}
	_, err := s.Synthesize(context.Background(), "q", evid)
	if !errors.Is(err, domain.ErrSynthesisFailed) {
		t.Fatalf("error = %v, want ErrSynthesisFailed", err)
	}
}

func TestBuildContext_BudgetDropsLowestRankItems(t *testing.T) {
	s := &Synthesizer{
		tokenBudget: 25,
		countTokens: func(text string) int { return len(strings.Fields(text)) },
	}
	evid := []evidence.Item{
		evidenceItem("legal", "a", "First title", "five words in this snippet", 1, 0.9),
		evidenceItem("gos", "b", "Second title", "another five word snippet here", 2, 0.8),
		evidenceItem("judicial", "c", "Third title", "this one must be dropped", 3, 0.7),
	}

	text, _, kept := s.buildContext(evid)
	if kept != 2 {
		t.Fatalf("kept = %d, want 2", kept)
	}
	if !strings.Contains(text, "[legal:a:") || !strings.Contains(text, "[gos:b:") {
		t.Errorf("context = %q", text)
	}
	if strings.Contains(text, "[judicial:c:") {
		t.Errorf("lowest-rank item not dropped: %q", text)
	}
}

func TestBuildContext_TopItemAlwaysKept(t *testing.T) {
	s := &Synthesizer{
		tokenBudget: 1,
		countTokens: func(text string) int { return len(strings.Fields(text)) },
	}
	evid := []evidence.Item{
		evidenceItem("legal", "a", "A very long title indeed", "and an even longer snippet body", 1, 0.9),
		evidenceItem("gos", "b", "Second", "snippet", 2, 0.8),
	}

	_, _, kept := s.buildContext(evid)
	if kept != 1 {
		t.Fatalf("kept = %d, want the top item regardless of budget", kept)
	}
}
