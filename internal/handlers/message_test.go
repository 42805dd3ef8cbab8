package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chat-app/internal/auth"
	"chat-app/internal/middleware"
	"chat-app/internal/mocks"
	"chat-app/internal/models"
	"chat-app/internal/repositories"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	return hash
}

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserKey, models.User{ID: 1})
		c.Set(middleware.UserIDKey, 1)
		c.Next()
	})
	r.GET("/api/messages/users", handler.ListUsers)
	r.GET("/api/messages/:id", handler.GetConversation)
	r.PUT("/api/messages/mark/:id", handler.MarkSeen)
	r.POST("/api/messages/send/:id", handler.Send)
	return r
}

func TestListUsersWithUnseenCounts(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(users, messages, new(mocks.UploaderMock), new(mocks.DispatcherMock), nil, testLogger())
	router := setupMessageRouter(handler)

	users.On("ListOthers", mock.Anything, 1).
		Return([]models.User{{ID: 2, FullName: "Bob"}, {ID: 3, FullName: "Eve"}}, nil).Once()
	messages.On("UnseenCounts", mock.Anything, 1).
		Return(map[int]int{2: 3}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/messages/users", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, true, resp["success"])

	unseen := resp["unseenMessages"].(map[string]any)
	assert.Equal(t, float64(3), unseen["2"])
	_, hasEve := unseen["3"]
	assert.False(t, hasEve)

	users.AssertExpectations(t)
	messages.AssertExpectations(t)
}

func TestListUsersRepoError(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	handler := NewMessageHandler(users, new(mocks.MessageRepositoryMock), new(mocks.UploaderMock), new(mocks.DispatcherMock), nil, testLogger())
	router := setupMessageRouter(handler)

	users.On("ListOthers", mock.Anything, 1).Return(([]models.User)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/messages/users", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetConversationMarksSeen(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(new(mocks.UserRepositoryMock), messages, new(mocks.UploaderMock), new(mocks.DispatcherMock), nil, testLogger())
	router := setupMessageRouter(handler)

	messages.On("Conversation", mock.Anything, 1, 2).
		Return([]models.Message{{ID: 10, SenderID: 2, RecipientID: 1, Text: "hey"}}, nil).Once()
	messages.On("MarkConversationSeen", mock.Anything, 1, 2).Return(nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/messages/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, true, resp["success"])
	messages.AssertExpectations(t)
}

func TestGetConversationInvalidID(t *testing.T) {
	handler := NewMessageHandler(new(mocks.UserRepositoryMock), new(mocks.MessageRepositoryMock), new(mocks.UploaderMock), new(mocks.DispatcherMock), nil, testLogger())
	router := setupMessageRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/messages/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkSeenSuccess(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(new(mocks.UserRepositoryMock), messages, new(mocks.UploaderMock), new(mocks.DispatcherMock), nil, testLogger())
	router := setupMessageRouter(handler)

	messages.On("MarkSeen", mock.Anything, 7).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPut, "/api/messages/mark/7", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messages.AssertExpectations(t)
}

func TestMarkSeenNotFound(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(new(mocks.UserRepositoryMock), messages, new(mocks.UploaderMock), new(mocks.DispatcherMock), nil, testLogger())
	router := setupMessageRouter(handler)

	messages.On("MarkSeen", mock.Anything, 404).Return(repositories.ErrMessageNotFound).Once()

	req := httptest.NewRequest(http.MethodPut, "/api/messages/mark/404", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendPersistsThenDispatches(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	dispatcher := new(mocks.DispatcherMock)
	handler := NewMessageHandler(users, messages, new(mocks.UploaderMock), dispatcher, nil, testLogger())
	router := setupMessageRouter(handler)

	stored := models.Message{ID: 11, SenderID: 1, RecipientID: 2, Text: "hi"}
	users.On("GetByID", mock.Anything, 2).Return(models.User{ID: 2}, nil).Once()
	messages.On("Create", mock.Anything, 1, 2, "hi", "").Return(stored, nil).Once()
	dispatcher.On("Dispatch", stored).Once()

	body := bytes.NewBufferString(`{"text":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/messages/send/2", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, true, resp["success"])
	newMessage := resp["newMessage"].(map[string]any)
	assert.Equal(t, "hi", newMessage["text"])

	users.AssertExpectations(t)
	messages.AssertExpectations(t)
	dispatcher.AssertExpectations(t)
}

func TestSendRequiresTextOrImage(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(new(mocks.UserRepositoryMock), messages, new(mocks.UploaderMock), new(mocks.DispatcherMock), nil, testLogger())
	router := setupMessageRouter(handler)

	body := bytes.NewBufferString(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/api/messages/send/2", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	messages.AssertNotCalled(t, "Create")
}

func TestSendUploadsImage(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	uploader := new(mocks.UploaderMock)
	dispatcher := new(mocks.DispatcherMock)
	handler := NewMessageHandler(users, messages, uploader, dispatcher, nil, testLogger())
	router := setupMessageRouter(handler)

	stored := models.Message{ID: 12, SenderID: 1, RecipientID: 2, Image: "https://cdn.example.com/images/y.png"}
	users.On("GetByID", mock.Anything, 2).Return(models.User{ID: 2}, nil).Once()
	uploader.On("Upload", mock.Anything, "data:image/png;base64,AA==").
		Return("https://cdn.example.com/images/y.png", nil).Once()
	messages.On("Create", mock.Anything, 1, 2, "", "https://cdn.example.com/images/y.png").
		Return(stored, nil).Once()
	dispatcher.On("Dispatch", stored).Once()

	body := bytes.NewBufferString(`{"image":"data:image/png;base64,AA=="}`)
	req := httptest.NewRequest(http.MethodPost, "/api/messages/send/2", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	uploader.AssertExpectations(t)
	messages.AssertExpectations(t)
	dispatcher.AssertExpectations(t)
}

func TestSendUnknownRecipient(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(users, messages, new(mocks.UploaderMock), new(mocks.DispatcherMock), nil, testLogger())
	router := setupMessageRouter(handler)

	users.On("GetByID", mock.Anything, 99).Return(models.User{}, repositories.ErrUserNotFound).Once()

	body := bytes.NewBufferString(`{"text":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/messages/send/99", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	messages.AssertNotCalled(t, "Create")
}

func TestSendUploadFailureDoesNotStore(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	uploader := new(mocks.UploaderMock)
	handler := NewMessageHandler(users, messages, uploader, new(mocks.DispatcherMock), nil, testLogger())
	router := setupMessageRouter(handler)

	users.On("GetByID", mock.Anything, 2).Return(models.User{ID: 2}, nil).Once()
	uploader.On("Upload", mock.Anything, mock.AnythingOfType("string")).
		Return("", assert.AnError).Once()

	body := bytes.NewBufferString(`{"image":"data:image/png;base64,AA=="}`)
	req := httptest.NewRequest(http.MethodPost, "/api/messages/send/2", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	messages.AssertNotCalled(t, "Create")
}
