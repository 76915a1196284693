package domain

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// GiftMessagePrefix 是礼物消息在会话中的展示文本前缀。
const GiftMessagePrefix = "Подарок: "

// ChatRecord 是送礼后需要追加到会话中的一条不可删除的记录。
// 它先写入事务内的 outbox，再由中继投递给消息服务。
type ChatRecord struct {
	ID           string
	ChatID       string
	Participants []string
	SenderID     string
	Text         string
	GiftID       string
	Deletable    bool
	CreatedAt    time.Time

	Delivered bool
	Attempts  int
	LastError string
}

// NewGiftRecord 构造一条送礼消息。
func NewGiftRecord(id, senderID, receiverID string, gift *Gift, now time.Time) *ChatRecord {
	participants := []string{senderID, receiverID}
	return &ChatRecord{
		ID:           id,
		ChatID:       ChatID(senderID, receiverID),
		Participants: participants,
		SenderID:     senderID,
		Text:         GiftMessagePrefix + gift.Name,
		GiftID:       gift.ID,
		Deletable:    false,
		CreatedAt:    now,
	}
}

// ChatID 是两人会话的稳定标识：排序后参与者列表 JSON 文本的 md5。
func ChatID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	parts := make([]string, 0, len(pair))
	for _, p := range pair {
		raw, _ := json.Marshal(p)
		parts = append(parts, string(raw))
	}
	sum := md5.Sum([]byte("[" + strings.Join(parts, ", ") + "]"))
	return hex.EncodeToString(sum[:])
}
