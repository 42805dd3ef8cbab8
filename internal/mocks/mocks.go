package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-app/internal/models"
	"chat-app/internal/repositories"
	"chat-app/internal/uploads"
	"chat-app/internal/ws"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) Create(ctx context.Context, email, passwordHash, fullName, bio string) (models.User, error) {
	args := m.Called(ctx, email, passwordHash, fullName, bio)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetByEmail(ctx context.Context, email string) (models.User, error) {
	args := m.Called(ctx, email)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetByID(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) UpdateProfile(ctx context.Context, userID int, fullName, bio, profilePic string) (models.User, error) {
	args := m.Called(ctx, userID, fullName, bio, profilePic)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) ListOthers(ctx context.Context, viewerID int) ([]models.User, error) {
	args := m.Called(ctx, viewerID)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, senderID, recipientID int, text, image string) (models.Message, error) {
	args := m.Called(ctx, senderID, recipientID, text, image)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Conversation(ctx context.Context, viewerID, counterpartID int) ([]models.Message, error) {
	args := m.Called(ctx, viewerID, counterpartID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) UnseenCounts(ctx context.Context, viewerID int) (map[int]int, error) {
	args := m.Called(ctx, viewerID)
	var counts map[int]int
	if val := args.Get(0); val != nil {
		counts = val.(map[int]int)
	}
	return counts, args.Error(1)
}

func (m *MessageRepositoryMock) MarkConversationSeen(ctx context.Context, viewerID, counterpartID int) error {
	args := m.Called(ctx, viewerID, counterpartID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) MarkSeen(ctx context.Context, messageID int) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

type UploaderMock struct {
	mock.Mock
}

func (m *UploaderMock) Upload(ctx context.Context, dataURI string) (string, error) {
	args := m.Called(ctx, dataURI)
	return args.String(0), args.Error(1)
}

type DispatcherMock struct {
	mock.Mock
}

func (m *DispatcherMock) Dispatch(msg models.Message) {
	m.Called(msg)
}

type TokenServiceMock struct {
	mock.Mock
}

func (m *TokenServiceMock) Issue(userID int) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}

func (m *TokenServiceMock) Verify(token string) (int, error) {
	args := m.Called(token)
	return args.Int(0), args.Error(1)
}

var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ uploads.Uploader = (*UploaderMock)(nil)
var _ ws.Dispatcher = (*DispatcherMock)(nil)
