package adapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"vault/internal/pkg/mq"
	"vault/internal/service/economy/domain"
)

// ChatTopic 是会话记录写入的默认 topic
const ChatTopic = "chat-records"

// ChatRecordEvent 是发往消息服务的负载。
type ChatRecordEvent struct {
	ChatID       string    `json:"chat_id"`
	Participants []string  `json:"participants"`
	SenderID     string    `json:"sender_id"`
	Text         string    `json:"text"`
	GiftID       string    `json:"gift_id,omitempty"`
	Deletable    bool      `json:"deletable"`
	SentAt       time.Time `json:"sent_at"`
}

// ChatKafkaAdapter 实现了 port.Messenger 接口。
// 消息以会话 ID 作为 key，同一会话的记录落在同一分区。
type ChatKafkaAdapter struct {
	writer mq.MessageWriter
	now    func() time.Time
}

func NewChatKafkaAdapter(writer mq.MessageWriter) *ChatKafkaAdapter {
	return &ChatKafkaAdapter{writer: writer, now: time.Now}
}

func (a *ChatKafkaAdapter) AppendRecord(ctx context.Context, participants []string, senderID, text, giftID string) error {
	if len(participants) != 2 {
		return errors.Wrapf(domain.ErrValidation, "chat needs exactly two participants, got %d", len(participants))
	}
	event := ChatRecordEvent{
		ChatID:       domain.ChatID(participants[0], participants[1]),
		Participants: participants,
		SenderID:     senderID,
		Text:         text,
		GiftID:       giftID,
		Deletable:    false,
		SentAt:       a.now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal chat record")
	}
	return errors.Wrap(mq.ProduceMessage(ctx, a.writer, []byte(event.ChatID), payload), "failed to publish chat record")
}

// Close 关闭底层 writer（如果支持）。
func (a *ChatKafkaAdapter) Close() error {
	if c, ok := a.writer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
