package memory

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"awsbot/app/service/workflow"
)

const (
	maxLineSize = 4 * 1024 * 1024
	// leaves room for the extension within the usual 255 byte name limit
	maxFileNameLength = 240
)

var ErrConversationIDTooLong = errors.New("conversation id is too long")

var _ Store = (*FileStore)(nil)

// FileStore keeps every conversation in its own JSON-lines file:
// a summary header followed by one line per message.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}

	return &FileStore{
		dir: dir,
	}, nil
}

func (s *FileStore) path(conversationID string) (string, error) {
	if conversationID == "" {
		return "", ErrEmptyConversationID
	}

	// hex keeps distinct ids in distinct files whatever characters they contain
	name := hex.EncodeToString([]byte(conversationID))
	if len(name) > maxFileNameLength {
		return "", ErrConversationIDTooLong
	}

	return filepath.Join(s.dir, name+".jsonl"), nil
}

func (s *FileStore) Load(_ context.Context, conversationID string) (*workflow.State, error) {
	path, err := s.path(conversationID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return emptyState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation file: %w", err)
	}
	defer file.Close()

	state := emptyState()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var item jsonLineItem
		if err = json.Unmarshal([]byte(line), &item); err != nil {
			return nil, fmt.Errorf("failed to parse JSON line: %w", err)
		}

		switch item.Type {
		case lineSummary:
			state.Summary = item.Summary
		case lineMessage:
			if item.Message != nil {
				state.Messages = append(state.Messages, *item.Message)
			}
		default:
			slog.Warn("Skipping unknown conversation line",
				"conversation_id", conversationID,
				"type", item.Type,
			)
		}
	}

	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading conversation file: %w", err)
	}

	return state, nil
}

// Save replaces the stored conversation. The file is swapped in by rename so readers never see a partial write.
func (s *FileStore) Save(_ context.Context, conversationID string, state *workflow.State) error {
	path, err := s.path(conversationID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".conversation-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	writer := bufio.NewWriter(tmp)

	items := make([]jsonLineItem, 0, len(state.Messages)+1)
	items = append(items, jsonLineItem{Type: lineSummary, Summary: state.Summary})
	for i := range state.Messages {
		items = append(items, jsonLineItem{Type: lineMessage, Message: &state.Messages[i]})
	}

	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal line: %w", err)
		}
		if _, err = writer.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write line: %w", err)
		}
	}

	if err = writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace conversation file: %w", err)
	}

	return nil
}
