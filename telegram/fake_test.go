package telegram

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type sentMessage struct {
	ChatID    int64
	Text      string
	ParseMode string
	Markup    any
}

// fakeClient records what the bot sends instead of calling Telegram
type fakeClient struct {
	mu sync.Mutex

	next        int
	messages    []sentMessage
	edits       []tgbotapi.EditMessageTextConfig
	deleted     []int
	callbacks   []tgbotapi.CallbackConfig
	markupEdits []tgbotapi.EditMessageReplyMarkupConfig
	invites     []tgbotapi.CreateChatInviteLinkConfig

	blocked      map[int64]bool
	statuses     map[int64]string
	rejectMarkup bool
	missingChats map[int64]bool
	failDeletes  map[int]bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		blocked:      make(map[int64]bool),
		statuses:     make(map[int64]string),
		missingChats: make(map[int64]bool),
		failDeletes:  make(map[int]bool),
	}
}

func (f *fakeClient) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		if f.blocked[m.ChatID] {
			return tgbotapi.Message{}, &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}
		}
		if f.rejectMarkup && m.ParseMode == tgbotapi.ModeMarkdownV2 {
			return tgbotapi.Message{}, &tgbotapi.Error{Code: 400, Message: "Bad Request: can't parse entities: unexpected end"}
		}
		f.next++
		f.messages = append(f.messages, sentMessage{ChatID: m.ChatID, Text: m.Text, ParseMode: m.ParseMode, Markup: m.ReplyMarkup})
		return tgbotapi.Message{MessageID: f.next, Chat: &tgbotapi.Chat{ID: m.ChatID}}, nil
	case tgbotapi.EditMessageTextConfig:
		f.edits = append(f.edits, m)
		return tgbotapi.Message{MessageID: m.MessageID}, nil
	}
	return tgbotapi.Message{}, fmt.Errorf("unexpected send %T", c)
}

func (f *fakeClient) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ok := &tgbotapi.APIResponse{Ok: true, Result: json.RawMessage(`true`)}
	switch m := c.(type) {
	case tgbotapi.DeleteMessageConfig:
		if f.failDeletes[m.MessageID] {
			return nil, &tgbotapi.Error{Code: 400, Message: "Bad Request: message can't be deleted"}
		}
		f.deleted = append(f.deleted, m.MessageID)
		return ok, nil
	case tgbotapi.CallbackConfig:
		f.callbacks = append(f.callbacks, m)
		return ok, nil
	case tgbotapi.EditMessageReplyMarkupConfig:
		f.markupEdits = append(f.markupEdits, m)
		return ok, nil
	case tgbotapi.CreateChatInviteLinkConfig:
		if f.missingChats[m.ChatID] {
			return nil, &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}
		}
		f.invites = append(f.invites, m)
		return &tgbotapi.APIResponse{Ok: true, Result: json.RawMessage(`{"invite_link":"https://t.me/+invite"}`)}, nil
	}
	return nil, fmt.Errorf("unexpected request %T", c)
}

func (f *fakeClient) GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := f.statuses[config.UserID]
	if status == "" {
		status = "member"
	}
	return tgbotapi.ChatMember{Status: status}, nil
}

// textsTo returns the texts sent to chatID with markdown escapes removed
func (f *fakeClient) textsTo(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.messages {
		if m.ChatID == chatID {
			out = append(out, strings.ReplaceAll(m.Text, `\`, ""))
		}
	}
	return out
}

func (f *fakeClient) lastTo(chatID int64) string {
	texts := f.textsTo(chatID)
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}
