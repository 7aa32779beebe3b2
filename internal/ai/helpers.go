package ai

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed prompts/describe_face.txt
var describeFacePrompt string

//go:embed prompts/recognize_user.txt
var recognizeUserPrompt string

//go:embed prompts/emotion.txt
var emotionPrompt string

//go:embed prompts/liveness.txt
var livenessPrompt string

//go:embed prompts/detect_faces.txt
var detectFacesPrompt string

//go:embed prompts/chat_system.txt
var chatSystemPrompt string

// defaultPersona is used when no persona is configured.
const defaultPersona = "You are Aura, a friendly reception assistant."

// buildDescribeFacePrompt returns the embedded enrollment description prompt.
func buildDescribeFacePrompt() string {
	return describeFacePrompt
}

// buildRecognizePrompt builds the recognition system prompt with the candidate
// list embedded as JSON. Shared across all AI providers.
func buildRecognizePrompt(candidates []Candidate) string {
	candidatesJSON, _ := json.Marshal(candidates)
	return fmt.Sprintf(recognizeUserPrompt, string(candidatesJSON))
}

// buildEmotionPrompt returns the embedded emotion analysis prompt.
func buildEmotionPrompt() string {
	return emotionPrompt
}

// buildLivenessPrompt returns the embedded liveness check prompt.
func buildLivenessPrompt() string {
	return livenessPrompt
}

// buildDetectFacesPrompt returns the embedded face detection prompt.
func buildDetectFacesPrompt() string {
	return detectFacesPrompt
}

// buildChatSystemPrompt builds the chat system prompt around the persona.
func buildChatSystemPrompt(persona string) string {
	if strings.TrimSpace(persona) == "" {
		persona = defaultPersona
	}
	return fmt.Sprintf(chatSystemPrompt, persona)
}

// validateMatch rejects hallucinated matches: a match must reference one of
// the offered candidate IDs. Invalid verdicts collapse to no-match.
func validateMatch(m *Match, candidates []Candidate) *Match {
	if m == nil || !m.Matched {
		return NoMatch()
	}
	for _, c := range candidates {
		if c.ID == m.UserID {
			return m
		}
	}
	return NoMatch()
}

// normalizeEmotion collapses a model's emotion label onto the allowed set.
// Unknown labels become "neutral".
func normalizeEmotion(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	for _, e := range Emotions {
		if label == e {
			return e
		}
	}
	// Common synonyms from less constrained local models.
	switch label {
	case "happiness", "joy", "joyful", "smiling":
		return "happy"
	case "sadness", "unhappy":
		return "sad"
	case "anger", "mad":
		return "angry"
	case "surprise", "shocked":
		return "surprised"
	case "fear", "scared", "afraid":
		return "fearful"
	case "disgust":
		return "disgusted"
	}
	return "neutral"
}

// extractJSON attempts to extract a JSON object from a response that may
// contain extra text around it.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	if start == -1 {
		return content
	}

	// Find matching closing brace
	depth := 0
	for i := start; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}

	// If no matching brace found, return from start
	return content[start:]
}

// jsonRetryFeedback is the correction message sent back to a model whose
// response failed to parse.
func jsonRetryFeedback(err error) string {
	return fmt.Sprintf("JSON parse error: %v. Please fix the JSON and try again. Remember to escape quotes inside strings with backslash. Output ONLY valid JSON, no other text.", err)
}
