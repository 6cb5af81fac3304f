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
	"presence-chat/internal/ws"
)

func setupGroupRouter(handler *GroupHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/groups", handler.CreateGroup)
	r.GET("/groups", handler.ListGroups)
	r.POST("/groups/:groupId/members", handler.AddMembers)
	r.GET("/groups/:groupId/messages", handler.GetGroupMessages)
	r.POST("/groups/:groupId/messages", handler.PostGroupMessage)
	return r
}

func TestCreateGroupSuccess(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewGroupHandler(groupRepo, new(mocks.MessageRepositoryMock), userRepo, newTestGateway(), nil)
	router := setupGroupRouter(handler)

	userRepo.On("AllExist", mock.Anything, []int{2, 3}).Return(true, nil).Once()
	groupRepo.On("CreateGroup", mock.Anything, 1, "lunch crew", []int{2, 3}).Return(models.Group{ID: 7, Name: "lunch crew", CreatedBy: 1, MemberIDs: []int{1, 2, 3}}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups", bytes.NewBufferString(`{"name":"lunch crew","memberIds":[2,3]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp models.Group
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []int{1, 2, 3}, resp.MemberIDs)
	userRepo.AssertExpectations(t)
	groupRepo.AssertExpectations(t)
}

func TestCreateGroupUnknownMember(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewGroupHandler(new(mocks.GroupRepositoryMock), new(mocks.MessageRepositoryMock), userRepo, newTestGateway(), nil)
	router := setupGroupRouter(handler)

	userRepo.On("AllExist", mock.Anything, []int{99}).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups", bytes.NewBufferString(`{"name":"g","memberIds":[99]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	userRepo.AssertExpectations(t)
}

func TestCreateGroupMissingName(t *testing.T) {
	handler := NewGroupHandler(new(mocks.GroupRepositoryMock), new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock), newTestGateway(), nil)
	router := setupGroupRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/groups", bytes.NewBufferString(`{"memberIds":[2]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListGroupsSuccess(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock), newTestGateway(), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("ListGroupsForUser", mock.Anything, 1).Return([]models.Group{{ID: 7, Name: "g", MemberIDs: []int{1, 2}}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/groups", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	groupRepo.AssertExpectations(t)
}

func TestAddMembersSuccess(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewGroupHandler(groupRepo, new(mocks.MessageRepositoryMock), userRepo, newTestGateway(), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("GetGroup", mock.Anything, 7).Return(models.Group{ID: 7, CreatedBy: 1, MemberIDs: []int{1, 2}}, nil).Once()
	userRepo.On("AllExist", mock.Anything, []int{3}).Return(true, nil).Once()
	groupRepo.On("AddMembers", mock.Anything, 7, []int{3}).Return(nil).Once()
	groupRepo.On("GetGroup", mock.Anything, 7).Return(models.Group{ID: 7, CreatedBy: 1, MemberIDs: []int{1, 2, 3}}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups/7/members", bytes.NewBufferString(`{"memberIds":[3]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.Group
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []int{1, 2, 3}, resp.MemberIDs)
	groupRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}

func TestAddMembersNotCreator(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock), newTestGateway(), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("GetGroup", mock.Anything, 7).Return(models.Group{ID: 7, CreatedBy: 2}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups/7/members", bytes.NewBufferString(`{"memberIds":[3]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	groupRepo.AssertExpectations(t)
}

func TestGetGroupMessagesNotMember(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock), newTestGateway(), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("IsMember", mock.Anything, 7, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/groups/7/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	groupRepo.AssertExpectations(t)
}

func TestGetGroupMessagesSuccess(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewGroupHandler(groupRepo, messageRepo, new(mocks.UserRepositoryMock), newTestGateway(), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("IsMember", mock.Anything, 7, 1).Return(true, nil).Once()
	messageRepo.On("ListGroupMessages", mock.Anything, 7).Return([]models.Message{{ID: 1, SenderID: 2, GroupID: intPtr(7), Text: "hi"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/groups/7/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	groupRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestPostGroupMessageSuccess(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	hub := ws.NewHub()
	gateway := ws.NewGateway(hub, groupRepo)
	handler := NewGroupHandler(groupRepo, messageRepo, new(mocks.UserRepositoryMock), gateway, nil)
	router := setupGroupRouter(handler)

	groupRepo.On("IsMember", mock.Anything, 7, 1).Return(true, nil).Once()
	messageRepo.On("CreateGroupMessage", mock.Anything, 1, 7, "hello all", "").Return(models.Message{ID: 9, SenderID: 1, GroupID: intPtr(7), Text: "hello all"}, nil).Once()
	groupRepo.On("MemberIDs", mock.Anything, 7).Return([]int{1, 2, 3}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups/7/messages", bytes.NewBufferString(`{"text":"hello all"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	groupRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestPostGroupMessageEmptyBody(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock), newTestGateway(), nil)
	router := setupGroupRouter(handler)

	groupRepo.On("IsMember", mock.Anything, 7, 1).Return(true, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups/7/messages", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	groupRepo.AssertExpectations(t)
}
