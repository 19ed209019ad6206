package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

type ChatUserStats struct {
	Conversations int `json:"conversations"`
	Messages      int `json:"messages"`
	Tokens        int `json:"tokens"`
}

type ChatSummary struct {
	GeneratedAt        time.Time                 `json:"generated_at"`
	DataType           string                    `json:"data_type"`
	Users              map[string]*ChatUserStats `json:"users"`
	TotalConversations int                       `json:"total_conversations"`
	TotalMessages      int                       `json:"total_messages"`
	TotalTokens        int                       `json:"total_tokens"`
	FallbackCount      int                       `json:"fallback_count"`
	ModelUsage         map[string]int            `json:"model_usage"`
}

// conversation mirrors the fields of an uploaded chat record that feed the
// summary; anything else in the document is ignored.
type conversation struct {
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	TokenUsage *struct {
		TotalTokens int `json:"totalTokens"`
	} `json:"tokenUsage"`
	ModelName  string `json:"modelName"`
	IsFallback bool   `json:"isFallback"`
}

func newChatSummary() *ChatSummary {
	return &ChatSummary{
		GeneratedAt: now(),
		DataType:    DataTypeChat,
		Users:       make(map[string]*ChatUserStats),
		ModelUsage:  make(map[string]int),
	}
}

// GenerateChat walks root/<user_id>/*.json and counts conversations, messages,
// tokens, fallback responses and model usage. Records that cannot be decoded
// are logged and left out of every counter.
func GenerateChat(root string) (*ChatSummary, error) {
	summary := newChatSummary()

	dirs, err := userDirs(root)
	if err != nil {
		return nil, err
	}

	for _, dir := range dirs {
		userID := dir.Name()
		userStats := &ChatUserStats{}
		summary.Users[userID] = userStats

		files, err := filesWithSuffix(filepath.Join(root, userID), ".json")
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("could not list chat records")
			continue
		}

		for _, path := range files {
			conv, err := readConversation(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("skipping unreadable chat record")
				continue
			}
			summary.add(userStats, conv)
		}
	}

	return summary, nil
}

func readConversation(path string) (*conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var conv conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return &conv, nil
}

func (s *ChatSummary) add(user *ChatUserStats, conv *conversation) {
	user.Conversations++
	s.TotalConversations++

	for _, msg := range conv.Messages {
		user.Messages++
		s.TotalMessages++

		if msg.IsFallback {
			s.FallbackCount++
		}

		if msg.TokenUsage != nil {
			user.Tokens += msg.TokenUsage.TotalTokens
			s.TotalTokens += msg.TokenUsage.TotalTokens
		}

		if msg.ModelName != "" {
			s.ModelUsage[msg.ModelName]++
		}
	}
}

// WriteChat generates the chat summary for root and stores it there.
func WriteChat(root string) (*ChatSummary, string, error) {
	summary, err := GenerateChat(root)
	if err != nil {
		return nil, "", err
	}
	path, err := Write(root, summary)
	if err != nil {
		return nil, "", err
	}
	return summary, path, nil
}
