package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"presence-chat/internal/mocks"
	"presence-chat/internal/models"
	"presence-chat/internal/repositories"
	"presence-chat/internal/ws"
)

func intPtr(v int) *int { return &v }

func newTestGateway() *ws.Gateway {
	return ws.NewGateway(ws.NewHub(), nil)
}

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/messages/users", handler.ListUsers)
	r.GET("/messages/user/:id", handler.GetDirectMessages)
	r.GET("/messages/search", handler.SearchMessages)
	r.POST("/messages/send/:id", handler.SendMessage)
	r.POST("/messages/reaction/:messageId", handler.AddReaction)
	r.PUT("/messages/edit/:messageId", handler.EditMessage)
	r.DELETE("/messages/delete/:messageId", handler.DeleteMessage)
	return r
}

func TestListUsersSuccess(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewMessageHandler(userRepo, new(mocks.MessageRepositoryMock), newTestGateway(), nil)
	router := setupMessageRouter(handler)

	userRepo.On("ListOthers", mock.Anything, 1).Return([]models.User{{ID: 2, Username: "bob"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/users", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	userRepo.AssertExpectations(t)
}

func TestGetDirectMessagesSuccess(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(new(mocks.UserRepositoryMock), messageRepo, newTestGateway(), nil)
	router := setupMessageRouter(handler)

	messageRepo.On("ListDirectMessages", mock.Anything, 1, 2).Return([]models.Message{{ID: 1, SenderID: 2, ReceiverID: intPtr(1), Text: "hi"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/user/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestGetDirectMessagesInvalidID(t *testing.T) {
	handler := NewMessageHandler(new(mocks.UserRepositoryMock), new(mocks.MessageRepositoryMock), newTestGateway(), nil)
	router := setupMessageRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/messages/user/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchMessagesMissingQuery(t *testing.T) {
	handler := NewMessageHandler(new(mocks.UserRepositoryMock), new(mocks.MessageRepositoryMock), newTestGateway(), nil)
	router := setupMessageRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/messages/search", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchMessagesSuccess(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(new(mocks.UserRepositoryMock), messageRepo, newTestGateway(), nil)
	router := setupMessageRouter(handler)

	messageRepo.On("SearchMessages", mock.Anything, 1, "lunch").Return([]models.Message{{ID: 3, SenderID: 1, ReceiverID: intPtr(2), Text: "lunch?"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/search?q=lunch", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestSendMessageSuccess(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(userRepo, messageRepo, newTestGateway(), nil)
	router := setupMessageRouter(handler)

	userRepo.On("GetUser", mock.Anything, 2).Return(models.User{ID: 2}, nil).Once()
	messageRepo.On("CreateDirectMessage", mock.Anything, 1, 2, "hello", "").Return(models.Message{ID: 7, SenderID: 1, ReceiverID: intPtr(2), Text: "hello"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/send/2", bytes.NewBufferString(`{"text":"hello"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 7, resp.ID)
	userRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestSendMessageToSelf(t *testing.T) {
	handler := NewMessageHandler(new(mocks.UserRepositoryMock), new(mocks.MessageRepositoryMock), newTestGateway(), nil)
	router := setupMessageRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/messages/send/1", bytes.NewBufferString(`{"text":"hi me"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageEmptyBody(t *testing.T) {
	handler := NewMessageHandler(new(mocks.UserRepositoryMock), new(mocks.MessageRepositoryMock), newTestGateway(), nil)
	router := setupMessageRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/messages/send/2", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageReceiverMissing(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewMessageHandler(userRepo, new(mocks.MessageRepositoryMock), newTestGateway(), nil)
	router := setupMessageRouter(handler)

	userRepo.On("GetUser", mock.Anything, 9).Return(models.User{}, repositories.ErrUserNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/send/9", bytes.NewBufferString(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	userRepo.AssertExpectations(t)
}

func TestAddReactionSuccess(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(new(mocks.UserRepositoryMock), messageRepo, newTestGateway(), nil)
	router := setupMessageRouter(handler)

	stored := models.Message{ID: 5, SenderID: 2, ReceiverID: intPtr(1), Text: "hi"}
	reacted := stored
	reacted.Reactions = []models.Reaction{{UserID: 1, Emoji: "❤️"}}

	messageRepo.On("GetMessage", mock.Anything, 5).Return(stored, nil).Once()
	messageRepo.On("SetReaction", mock.Anything, 5, 1, "❤️").Return(nil).Once()
	messageRepo.On("GetMessage", mock.Anything, 5).Return(reacted, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/reaction/5", bytes.NewBufferString(`{"emoji":"❤️"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Reactions, 1)
	assert.Equal(t, "❤️", resp.Reactions[0].Emoji)
	messageRepo.AssertExpectations(t)
}

func TestAddReactionNotParticipant(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(new(mocks.UserRepositoryMock), messageRepo, newTestGateway(), nil)
	router := setupMessageRouter(handler)

	messageRepo.On("GetMessage", mock.Anything, 5).Return(models.Message{ID: 5, SenderID: 2, ReceiverID: intPtr(3)}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/reaction/5", bytes.NewBufferString(`{"emoji":"❤️"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestAddReactionGroupMessageRejected(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(new(mocks.UserRepositoryMock), messageRepo, newTestGateway(), nil)
	router := setupMessageRouter(handler)

	messageRepo.On("GetMessage", mock.Anything, 5).Return(models.Message{ID: 5, SenderID: 2, GroupID: intPtr(7)}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/reaction/5", bytes.NewBufferString(`{"emoji":"❤️"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestEditMessageSuccess(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(new(mocks.UserRepositoryMock), messageRepo, newTestGateway(), nil)
	router := setupMessageRouter(handler)

	stored := models.Message{ID: 5, SenderID: 1, ReceiverID: intPtr(2), Text: "typo"}
	edited := stored
	edited.Text = "fixed"
	edited.IsEdited = true

	messageRepo.On("GetMessage", mock.Anything, 5).Return(stored, nil).Once()
	messageRepo.On("EditMessage", mock.Anything, 5, "fixed").Return(edited, nil).Once()

	req := httptest.NewRequest(http.MethodPut, "/messages/edit/5", bytes.NewBufferString(`{"text":"fixed"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.IsEdited)
	messageRepo.AssertExpectations(t)
}

func TestEditMessageNotSender(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(new(mocks.UserRepositoryMock), messageRepo, newTestGateway(), nil)
	router := setupMessageRouter(handler)

	messageRepo.On("GetMessage", mock.Anything, 5).Return(models.Message{ID: 5, SenderID: 2, ReceiverID: intPtr(1)}, nil).Once()

	req := httptest.NewRequest(http.MethodPut, "/messages/edit/5", bytes.NewBufferString(`{"text":"nope"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestDeleteMessageSuccess(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(new(mocks.UserRepositoryMock), messageRepo, newTestGateway(), nil)
	router := setupMessageRouter(handler)

	messageRepo.On("GetMessage", mock.Anything, 5).Return(models.Message{ID: 5, SenderID: 1, ReceiverID: intPtr(2)}, nil).Once()
	messageRepo.On("DeleteMessage", mock.Anything, 5).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/messages/delete/5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestDeleteMessageNotFound(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(new(mocks.UserRepositoryMock), messageRepo, newTestGateway(), nil)
	router := setupMessageRouter(handler)

	messageRepo.On("GetMessage", mock.Anything, 99).Return(models.Message{}, repositories.ErrMessageNotFound).Once()

	req := httptest.NewRequest(http.MethodDelete, "/messages/delete/99", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	messageRepo.AssertExpectations(t)
}
