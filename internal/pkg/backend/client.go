package backend

import (
	"Concierge/internal/api/config"
	"Concierge/internal/api/dto"
	"Concierge/internal/model"
	"Concierge/internal/pkg/logger"
	"Concierge/internal/pkg/security"
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
)

const codeOK = 200

// APIError 业务码非 200 的响应
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error %d: %s", e.Code, e.Message)
}

type envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// Client 聊天相关 REST 接口
type Client struct {
	http *resty.Client
}

// NewClient 构造 REST 客户端；token 为空时匿名访问
func NewClient(cfg config.BackendConfig, token security.TokenSource) *Client {
	r := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetTransport(logger.NewHTTPTransport(http.DefaultTransport)).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		SetHeader("Accept", "application/json")

	r.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if token != nil {
			if t := token(); t != "" {
				req.SetAuthToken(t)
			}
		}
		if traceID := logger.TraceID(req.Context()); traceID != "" {
			req.SetHeader("X-Trace-ID", traceID)
		}
		return nil
	})
	return &Client{http: r}
}

// InitChat 初始化或恢复会话
func (c *Client) InitChat(ctx context.Context, in model.InitRequest) (*model.InitResult, error) {
	body := dto.InitChatReq{
		GuestName:  in.GuestName,
		GuestEmail: in.GuestEmail,
		RoomID:     in.RoomID,
		SessionID:  in.SessionID,
	}
	var out dto.InitChatResp
	if err := c.do(ctx, http.MethodPost, "/chat/init", nil, nil, body, &out); err != nil {
		return nil, errors.Wrap(err, "init chat")
	}

	msgs, err := toMessages(out.Messages)
	if err != nil {
		return nil, err
	}
	return &model.InitResult{SessionID: out.SessionID, Messages: msgs}, nil
}

// FetchMessages 历史消息分页，第 0 页为最新
func (c *Client) FetchMessages(ctx context.Context, sessionID string, pageNo, pageSize int) (*model.Page[model.Message], error) {
	query := map[string]string{
		"pageNo":   strconv.Itoa(pageNo),
		"pageSize": strconv.Itoa(pageSize),
	}
	var out dto.PageDTO[dto.MessageDTO]
	path := map[string]string{"sessionId": sessionID}
	if err := c.do(ctx, http.MethodGet, "/chat/{sessionId}/messages", path, query, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "fetch messages of %s page %d", sessionID, pageNo)
	}

	msgs, err := toMessages(out.Items)
	if err != nil {
		return nil, err
	}
	return &model.Page[model.Message]{Items: msgs, PageNo: out.PageNo, HasNextPage: out.HasNextPage}, nil
}

// MarkChatRead 访客端标记已读
func (c *Client) MarkChatRead(ctx context.Context, sessionID string) error {
	path := map[string]string{"sessionId": sessionID}
	return errors.Wrap(c.do(ctx, http.MethodPost, "/chat/{sessionId}/read", path, nil, nil, nil), "mark chat read")
}

// ListConversations 管理端会话列表
func (c *Client) ListConversations(ctx context.Context, q model.ConversationQuery) (*model.Page[model.Conversation], error) {
	query := map[string]string{
		"pageNo":   strconv.Itoa(q.PageNo),
		"pageSize": strconv.Itoa(q.PageSize),
	}
	if q.Search != "" {
		query["search"] = q.Search
	}
	if q.SortBy != "" {
		query["sortBy"] = q.SortBy
	}
	if q.Status != "" {
		query["status"] = string(q.Status)
	}

	var out dto.PageDTO[dto.ConversationDTO]
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, query, nil, &out); err != nil {
		return nil, errors.Wrap(err, "list conversations")
	}

	items := make([]model.Conversation, 0, len(out.Items))
	if err := copier.Copy(&items, &out.Items); err != nil {
		return nil, errors.Wrap(err, "map conversations")
	}
	return &model.Page[model.Conversation]{Items: items, PageNo: out.PageNo, HasNextPage: out.HasNextPage}, nil
}

// MarkConversationRead 管理端标记已读
func (c *Client) MarkConversationRead(ctx context.Context, sessionID string) error {
	path := map[string]string{"id": sessionID}
	return errors.Wrap(c.do(ctx, http.MethodPost, "/conversations/{id}/read", path, nil, nil, nil), "mark conversation read")
}

// UpdateConversationStatus 变更会话状态
func (c *Client) UpdateConversationStatus(ctx context.Context, sessionID string, status model.ConversationStatus) error {
	path := map[string]string{"id": sessionID}
	body := dto.UpdateStatusReq{Status: string(status)}
	return errors.Wrap(c.do(ctx, http.MethodPost, "/conversations/{id}/status", path, nil, body, nil), "update conversation status")
}

// DeleteConversation 删除会话
func (c *Client) DeleteConversation(ctx context.Context, sessionID string) error {
	path := map[string]string{"id": sessionID}
	return errors.Wrap(c.do(ctx, http.MethodDelete, "/conversations/{id}", path, nil, nil, nil), "delete conversation")
}

func (c *Client) do(ctx context.Context, method, url string, path, query map[string]string, body, out any) error {
	env := envelope[json.RawMessage]{}
	req := c.http.R().
		SetContext(ctx).
		SetResult(&env).
		SetError(&env)
	if path != nil {
		req.SetPathParams(path)
	}
	if query != nil {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		return err
	}
	if resp.IsError() && env.Code == 0 {
		return &APIError{Code: resp.StatusCode(), Message: resp.Status()}
	}
	if env.Code != codeOK {
		return &APIError{Code: env.Code, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errors.Wrap(err, "decode response data")
	}
	return nil
}

func toMessages(in []dto.MessageDTO) ([]model.Message, error) {
	out := make([]model.Message, 0, len(in))
	if err := copier.Copy(&out, &in); err != nil {
		return nil, errors.Wrap(err, "map messages")
	}
	return out, nil
}
