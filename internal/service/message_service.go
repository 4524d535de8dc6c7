package service

import (
	"errors"
	"sage_edu_backend/internal/model"
	"sage_edu_backend/internal/repository"
	"sage_edu_backend/internal/util"
	"strings"

	"gorm.io/gorm"
)

const maxMessageLength = 4000

type MessageService struct {
	MessageRepo *repository.MessageRepository
	UserRepo    *repository.UserRepository
}

func NewMessageService(messageRepo *repository.MessageRepository, userRepo *repository.UserRepository) *MessageService {
	return &MessageService{MessageRepo: messageRepo, UserRepo: userRepo}
}

type SendMessageRequest struct {
	RecipientID uint   `json:"recipientId" binding:"required"`
	Content     string `json:"content" binding:"required"`
}

type ConversationPeer struct {
	repository.PeerSummary
	Name        string         `json:"name"`
	Avatar      string         `json:"avatar,omitempty"`
	LastMessage *model.Message `json:"lastMessage,omitempty"`
}

func (s *MessageService) Send(senderID uint, req SendMessageRequest) (*model.Message, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, util.ErrEmptyMessage
	}
	if len(content) > maxMessageLength {
		content = content[:maxMessageLength]
	}
	if req.RecipientID == senderID {
		return nil, util.ErrCannotMessageSelf
	}
	if _, err := s.UserRepo.FindByID(req.RecipientID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}

	msg := &model.Message{
		SenderID:    senderID,
		RecipientID: req.RecipientID,
		Content:     content,
	}
	if err := s.MessageRepo.Create(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Conversation 读取与 peer 的对话并把对方发来的消息标为已读
func (s *MessageService) Conversation(userID, peerID uint, page, limit int) ([]model.Message, int64, error) {
	msgs, total, err := s.MessageRepo.Conversation(userID, peerID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	if _, err := s.MessageRepo.MarkRead(peerID, userID); err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

func (s *MessageService) MarkRead(userID, peerID uint) (int64, error) {
	return s.MessageRepo.MarkRead(peerID, userID)
}

func (s *MessageService) UnreadCount(userID uint) (int64, error) {
	return s.MessageRepo.UnreadCount(userID)
}

func (s *MessageService) Peers(userID uint) ([]ConversationPeer, error) {
	summaries, err := s.MessageRepo.Peers(userID)
	if err != nil {
		return nil, err
	}
	userIDs := make([]uint, len(summaries))
	msgIDs := make([]uint, len(summaries))
	for i, p := range summaries {
		userIDs[i] = p.PeerID
		msgIDs[i] = p.LastMessageID
	}
	users, err := s.UserRepo.FindByIDs(userIDs)
	if err != nil {
		return nil, err
	}
	msgs, err := s.MessageRepo.FindByIDs(msgIDs)
	if err != nil {
		return nil, err
	}
	usersByID := make(map[uint]model.User, len(users))
	for _, u := range users {
		usersByID[u.ID] = u
	}
	msgsByID := make(map[uint]model.Message, len(msgs))
	for _, m := range msgs {
		msgsByID[m.ID] = m
	}

	peers := make([]ConversationPeer, len(summaries))
	for i, p := range summaries {
		u := usersByID[p.PeerID]
		peers[i] = ConversationPeer{PeerSummary: p, Name: u.Name, Avatar: u.Avatar}
		if m, ok := msgsByID[p.LastMessageID]; ok {
			peers[i].LastMessage = &m
		}
	}
	return peers, nil
}
