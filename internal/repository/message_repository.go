package repository

import (
	"sage_edu_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type MessageRepository struct {
	DB *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{DB: db}
}

func (r *MessageRepository) Create(msg *model.Message) error {
	return r.DB.Create(msg).Error
}

// Conversation 两个用户之间的消息，按时间倒序分页
func (r *MessageRepository) Conversation(userA, userB uint, page, limit int) ([]model.Message, int64, error) {
	var msgs []model.Message
	var total int64
	query := r.DB.Model(&model.Message{}).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)", userA, userB, userB, userA)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC, id DESC").Offset((page - 1) * limit).Limit(limit).Find(&msgs).Error
	return msgs, total, err
}

// MarkRead 将 from -> to 的未读消息标记为已读
func (r *MessageRepository) MarkRead(from, to uint) (int64, error) {
	res := r.DB.Model(&model.Message{}).
		Where("sender_id = ? AND recipient_id = ? AND read_at IS NULL", from, to).
		Update("read_at", time.Now())
	return res.RowsAffected, res.Error
}

func (r *MessageRepository) UnreadCount(userID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Message{}).
		Where("recipient_id = ? AND read_at IS NULL", userID).
		Count(&count).Error
	return count, err
}

// PeerSummary 收件箱中每个对话对象的汇总
type PeerSummary struct {
	PeerID        uint `json:"peerId"`
	LastMessageID uint `json:"lastMessageId"`
	Unread        int  `json:"unread"`
}

func (r *MessageRepository) Peers(userID uint) ([]PeerSummary, error) {
	var rows []PeerSummary
	err := r.DB.Raw(`
		SELECT peer_id, MAX(id) AS last_message_id, SUM(unread) AS unread FROM (
			SELECT recipient_id AS peer_id, id, 0 AS unread
			FROM messages WHERE sender_id = ? AND deleted_at IS NULL
			UNION ALL
			SELECT sender_id AS peer_id, id, CASE WHEN read_at IS NULL THEN 1 ELSE 0 END AS unread
			FROM messages WHERE recipient_id = ? AND deleted_at IS NULL
		) t
		GROUP BY peer_id
		ORDER BY last_message_id DESC`, userID, userID).Scan(&rows).Error
	return rows, err
}

func (r *MessageRepository) FindByIDs(ids []uint) ([]model.Message, error) {
	var msgs []model.Message
	if len(ids) == 0 {
		return msgs, nil
	}
	err := r.DB.Where("id IN ?", ids).Find(&msgs).Error
	return msgs, err
}
