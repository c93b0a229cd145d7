package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-chat/internal/apperrors"
	"social-chat/internal/middleware"
	"social-chat/internal/mocks"
	"social-chat/internal/models"
)

var _ ChatService = (*mocks.ChatServiceMock)(nil)

func setupChatRouter(handler *ChatHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, "alice")
		c.Next()
	})
	handler.Register(r)
	return r
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestListChatsSuccess(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc))

	svc.On("ListChats", mock.Anything, "alice").Return([]models.ChatSummary{{ChatID: "c1", Type: models.ChatTypeDirect, UnreadCount: 2}}, nil).Once()

	rec := doJSON(router, http.MethodGet, "/chats", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string][]map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp["chats"], 1)
	svc.AssertExpectations(t)
}

func TestListChatsStorageError(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc))

	svc.On("ListChats", mock.Anything, "alice").Return(nil, apperrors.Transient("list chats", assert.AnError)).Once()

	rec := doJSON(router, http.MethodGet, "/chats", "")

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotContains(t, rec.Body.String(), assert.AnError.Error())
	svc.AssertExpectations(t)
}

func TestStartDirectChat(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc))

	svc.On("CreateDirectChat", mock.Anything, "alice", "bob").Return(models.Chat{ID: "c1", Type: models.ChatTypeDirect, IsActive: true}, nil).Once()

	rec := doJSON(router, http.MethodPost, "/chats/direct", `{"user_id":"bob"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"id":"c1"`)
	svc.AssertExpectations(t)
}

func TestStartDirectChatMissingUser(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc))

	rec := doJSON(router, http.MethodPost, "/chats/direct", `{}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "CreateDirectChat", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartDirectChatUnknownUser(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc))

	svc.On("CreateDirectChat", mock.Anything, "alice", "ghost").Return(nil, apperrors.NotFound("user")).Once()

	rec := doJSON(router, http.MethodPost, "/chats/direct", `{"user_id":"ghost"}`)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), string(apperrors.KindNotFound))
}

func TestCreateGroupChat(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc))

	info := models.GroupInfo{Name: "Hike", RelatedActivityID: "act-9"}
	roster := []models.NewParticipant{{UserID: "bob", Role: models.RoleMember}}
	svc.On("CreateGroupChat", mock.Anything, "alice", info, roster).Return(models.Chat{ID: "g1", Type: models.ChatTypeGroup, GroupInfo: &info}, nil).Once()

	rec := doJSON(router, http.MethodPost, "/chats/groups",
		`{"name":"Hike","related_activity_id":"act-9","participants":[{"user_id":"bob","role":"member"}]}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestGetChatRequiresParticipant(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc))

	svc.On("GetChat", mock.Anything, "c1").Return(models.Chat{
		ID:           "c1",
		Participants: []models.Participant{{UserID: "bob"}, {UserID: "carol"}},
	}, nil).Once()

	rec := doJSON(router, http.MethodGet, "/chats/c1", "")

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPostMessageUsesIdempotencyHeader(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc))

	expected := models.NewMessage{SenderID: "alice", Content: "hi", Kind: models.KindText, ClientMessageID: "k-1"}
	svc.On("AppendMessage", mock.Anything, "c1", expected).Return(models.Message{ID: "m1", ChatID: "c1", Content: "hi", CreatedAt: time.Now()}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/c1/messages", bytes.NewBufferString(`{"content":"hi","kind":"text"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "k-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestPostMessageNotParticipant(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc))

	svc.On("AppendMessage", mock.Anything, "c1", mock.Anything).Return(nil, apperrors.NotParticipant("c1", "alice")).Once()

	rec := doJSON(router, http.MethodPost, "/chats/c1/messages", `{"content":"hi"}`)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestEditMessageBySomeoneElse(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc))

	svc.On("EditMessage", mock.Anything, "c1", "m1", "alice", "fixed").Return(nil, apperrors.Unauthorized("only the sender can edit")).Once()

	rec := doJSON(router, http.MethodPatch, "/chats/c1/messages/m1", `{"content":"fixed"}`)

	require.Equal(t, http.StatusForbidden, rec.Code)
	svc.AssertExpectations(t)
}

func TestAddParticipantConflict(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc))

	svc.On("IsParticipant", mock.Anything, "g1", "alice").Return(true, nil).Once()
	svc.On("AddParticipant", mock.Anything, "alice", "g1", "bob", models.Role("")).Return(nil, apperrors.AlreadyParticipant("g1", "bob")).Once()

	rec := doJSON(router, http.MethodPost, "/chats/g1/participants", `{"user_id":"bob"}`)

	require.Equal(t, http.StatusConflict, rec.Code)
	svc.AssertExpectations(t)
}

func TestAddParticipantByOutsider(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc))

	svc.On("IsParticipant", mock.Anything, "g1", "alice").Return(false, nil).Once()

	rec := doJSON(router, http.MethodPost, "/chats/g1/participants", `{"user_id":"bob"}`)

	require.Equal(t, http.StatusForbidden, rec.Code)
	svc.AssertNotCalled(t, "AddParticipant", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveParticipantReportsActiveFlag(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc))

	svc.On("IsParticipant", mock.Anything, "c1", "alice").Return(true, nil).Once()
	svc.On("RemoveParticipant", mock.Anything, "alice", "c1", "bob").Return(false, nil).Once()

	rec := doJSON(router, http.MethodDelete, "/chats/c1/participants/bob", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"is_active":false`)
}

func TestSetMutedRequiresFlag(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc))

	rec := doJSON(router, http.MethodPut, "/chats/c1/mute", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	svc.On("SetMuted", mock.Anything, "c1", "alice", false).Return(nil).Once()
	rec = doJSON(router, http.MethodPut, "/chats/c1/mute", `{"muted":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestMarkReadWithoutBodyMarksAll(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc))

	svc.On("MarkRead", mock.Anything, "c1", "alice", []string(nil)).Return(0, nil).Once()

	rec := doJSON(router, http.MethodPost, "/chats/c1/read", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"unread_count":0`)
	svc.AssertExpectations(t)
}

func TestMarkReadSelectedMessages(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc))

	svc.On("MarkRead", mock.Anything, "c1", "alice", []string{"m1"}).Return(1, nil).Once()

	rec := doJSON(router, http.MethodPost, "/chats/c1/read", `{"message_ids":["m1"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"unread_count":1`)
}

func TestGetUnreadCountNotParticipant(t *testing.T) {
	svc := new(mocks.ChatServiceMock)
	router := setupChatRouter(NewChatHandler(svc))

	svc.On("GetUnreadCount", mock.Anything, "c1", "alice").Return(0, apperrors.NotParticipant("c1", "alice")).Once()

	rec := doJSON(router, http.MethodGet, "/chats/c1/unread", "")

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), string(apperrors.KindNotParticipant))
}
