package port

import "context"

// Messenger 是消息服务的出站端口。引擎只负责提交记录，不关心会话的格式和投递。
type Messenger interface {
	// AppendRecord 向参与者之间的会话追加一条记录，giftID 作为附件。
	AppendRecord(ctx context.Context, participants []string, senderID, text, giftID string) error
}
