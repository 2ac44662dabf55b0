package chat

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"just_sending_server/internal/infrastructure/metrics"
	"just_sending_server/internal/service/message"
	"just_sending_server/internal/service/session"
	"just_sending_server/internal/service/sharetoken"
	"just_sending_server/internal/service/stats"
	"just_sending_server/pkg/constants"
	"just_sending_server/pkg/errorx"
)

const relayConversation = "conversation"

// ConversationRelay 会话中继
// 持有本进程内的连接表，按会话把帧推送到各连接自己的发送通道
type ConversationRelay struct {
	sessions *session.Service
	tokens   *sharetoken.Service
	messages *message.Service
	stats    *stats.Service

	connections sync.Map // connectionId -> *Client

	mu        sync.RWMutex
	bySession map[string]map[string]*Client // sessionId -> connectionId -> *Client
}

// NewConversationRelay 构造函数，注入所有依赖
func NewConversationRelay(
	sessions *session.Service,
	tokens *sharetoken.Service,
	messages *message.Service,
	statsSvc *stats.Service,
) *ConversationRelay {
	return &ConversationRelay{
		sessions:  sessions,
		tokens:    tokens,
		messages:  messages,
		stats:     statsSvc,
		bySession: make(map[string]map[string]*Client),
	}
}

// ================== 连接事件 ==================

func (r *ConversationRelay) OnOpen(ctx context.Context, c *Client) {
	r.connections.Store(c.Id, c)
	r.stats.RecordEvent(ctx, stats.KindDevices, 1)
	metrics.ConnectionOpened(relayConversation)
}

func (r *ConversationRelay) OnMessage(ctx context.Context, c *Client, raw []byte) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		zap.L().Warn("无法解析的帧", zap.String("connection_id", c.Id), zap.Error(err))
		return
	}

	if in.Type == TypeConnect {
		r.connect(ctx, c, in.SessionId)
		return
	}

	sessionId := c.SessionId()
	if sessionId == "" {
		zap.L().Warn("未加入会话的连接发送了帧", zap.String("connection_id", c.Id), zap.String("type", in.Type))
		return
	}

	switch in.Type {
	case TypeCallPeer:
		r.callPeer(ctx, c, sessionId, in)
	case TypeShare:
		r.share(ctx, sessionId)
	case TypeCancelShare:
		r.CancelShare(ctx, sessionId)
	case TypeEraseSession:
		r.EraseSession(ctx, sessionId)
	default:
		zap.L().Warn("未知的帧类型", zap.String("connection_id", c.Id), zap.String("type", in.Type))
	}
}

// OnClose 连接断开
// lite 会话由轮询客户端维持，设备数归零也不销毁
func (r *ConversationRelay) OnClose(ctx context.Context, c *Client) {
	r.connections.Delete(c.Id)
	metrics.ConnectionClosed(relayConversation)
	r.leave(ctx, c)
}

// leave 连接离开当前会话
// 剩余设备收到新的设备数与离开通知，最后一台设备离开时销毁会话
func (r *ConversationRelay) leave(ctx context.Context, c *Client) {
	r.unbind(c.bind(""), c.Id)

	s, err := r.sessions.UntrackConnection(ctx, c.Id)
	if err != nil {
		zap.L().Error("卸载连接失败", zap.String("connection_id", c.Id), zap.Error(err))
		return
	}
	if s == nil || s.IsLiteSession {
		return
	}

	count := len(s.ConnectionIds())
	if count == 0 {
		r.EraseSession(ctx, s.Id)
		return
	}

	r.NotifySession(s.Id, SetNumberOfDevices(count))
	if _, err := r.messages.AddNotification(ctx, s.Id, c.Id, NotifyDeviceLeft); err != nil {
		zap.L().Warn("写入离开通知失败", zap.String("session_id", s.Id), zap.Error(err))
		return
	}
	r.NotifySession(s.Id, RequestReloadMessage())
}

// ================== 帧处理 ==================

func (r *ConversationRelay) connect(ctx context.Context, c *Client, sessionId string) {
	if sessionId == "" {
		return
	}

	// 同一 socket 换到另一个会话：目标会话存在才离开旧会话
	if prev := c.SessionId(); prev != "" && prev != sessionId {
		if _, err := r.sessions.Get(ctx, sessionId); err != nil {
			if errorx.IsNotFound(err) {
				c.Send(SessionDeleted())
				return
			}
			zap.L().Error("查询会话失败", zap.String("session_id", sessionId), zap.Error(err))
			return
		}
		r.leave(ctx, c)
	}

	s, err := r.sessions.TrackConnection(ctx, sessionId, c.Id)
	if err != nil {
		if errorx.IsNotFound(err) {
			c.Send(SessionDeleted())
			return
		}
		zap.L().Error("挂载连接失败", zap.String("session_id", sessionId), zap.Error(err))
		return
	}
	r.bind(sessionId, c)
	c.Send(Connected(c.Id))

	token, hasToken, err := r.tokens.Current(ctx, sessionId)
	if err != nil {
		zap.L().Warn("读取配对码失败", zap.String("session_id", sessionId), zap.Error(err))
	}
	if hasToken {
		c.Send(ShowSharePanel(token))
	}

	ids := s.ConnectionIds()
	r.NotifySession(sessionId, SetNumberOfDevices(len(ids)))
	if len(ids) < 2 {
		return
	}

	r.pair(c.Id, ids)
	if cancelled, err := r.tokens.Cancel(ctx, sessionId); err != nil {
		zap.L().Warn("删除配对码失败", zap.String("session_id", sessionId), zap.Error(err))
	} else if cancelled {
		r.NotifySession(sessionId, HideSharePanel())
	}
}

// pair 新设备与列表中最早加入的另一台设备交换密钥
// 新设备发起，对端响应；任一端不在本进程时不发送
func (r *ConversationRelay) pair(newId string, ids []string) {
	var partnerId string
	for _, id := range ids {
		if id != newId {
			partnerId = id
			break
		}
	}
	if partnerId == "" {
		return
	}
	pka := uuid.NewString()
	r.SendTo(partnerId, StartKeyExchange(newId, pka, false))
	r.SendTo(newId, StartKeyExchange(partnerId, pka, true))
}

func (r *ConversationRelay) callPeer(ctx context.Context, c *Client, sessionId string, in Inbound) {
	if in.PeerId != constants.PEER_ALL {
		target, ok := r.connections.Load(in.PeerId)
		if !ok {
			return
		}
		peer := target.(*Client)
		if peer.SessionId() != sessionId {
			return
		}
		peer.Send(Callback(in.Method, in.Param))
		return
	}

	for _, peer := range r.clients(sessionId) {
		if peer.Id != c.Id {
			peer.Send(Callback(in.Method, in.Param))
		}
	}

	s, err := r.sessions.Get(ctx, sessionId)
	if err != nil {
		zap.L().Warn("查询会话失败", zap.String("session_id", sessionId), zap.Error(err))
		return
	}
	text := NotifyDeviceJoined
	if len(s.ConnectionIds()) == 2 {
		text += NotifyPairHint
	}
	if _, err := r.messages.AddNotification(ctx, sessionId, c.Id, text); err != nil {
		zap.L().Warn("写入加入通知失败", zap.String("session_id", sessionId), zap.Error(err))
		return
	}
	r.NotifySession(sessionId, RequestReloadMessage())
}

func (r *ConversationRelay) share(ctx context.Context, sessionId string) {
	token, err := r.tokens.Allocate(ctx, sessionId)
	if err != nil {
		zap.L().Error("分配配对码失败", zap.String("session_id", sessionId), zap.Error(err))
		return
	}
	r.NotifySession(sessionId, ShowSharePanel(token))
}

// CancelShare 删除会话的配对码，存在时广播 hideSharePanel
func (r *ConversationRelay) CancelShare(ctx context.Context, sessionId string) {
	cancelled, err := r.tokens.Cancel(ctx, sessionId)
	if err != nil {
		zap.L().Error("删除配对码失败", zap.String("session_id", sessionId), zap.Error(err))
		return
	}
	if cancelled {
		r.NotifySession(sessionId, HideSharePanel())
	}
}

// EraseSession 销毁会话并通知所有挂载的连接
func (r *ConversationRelay) EraseSession(ctx context.Context, sessionId string) {
	ids, err := r.sessions.Teardown(ctx, sessionId)
	if err != nil {
		zap.L().Error("销毁会话失败", zap.String("session_id", sessionId), zap.Error(err))
		return
	}
	r.notifyDeleted(sessionId, ids)
}

// HandleExpired 会话到期销毁后的回调
func (r *ConversationRelay) HandleExpired(sessionId string, connectionIds []string) {
	r.notifyDeleted(sessionId, connectionIds)
}

// notifyDeleted 本地会话表与销毁时挂载的连接取并集，各发一次 sessionDeleted
func (r *ConversationRelay) notifyDeleted(sessionId string, connectionIds []string) {
	sent := make(map[string]struct{})
	for _, c := range r.clients(sessionId) {
		sent[c.Id] = struct{}{}
		c.Send(SessionDeleted())
	}
	for _, id := range connectionIds {
		if _, ok := sent[id]; ok {
			continue
		}
		sent[id] = struct{}{}
		r.SendTo(id, SessionDeleted())
	}
}

// ================== 本地连接表 ==================

func (r *ConversationRelay) bind(sessionId string, c *Client) {
	c.bind(sessionId)
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.bySession[sessionId]
	if !ok {
		set = make(map[string]*Client)
		r.bySession[sessionId] = set
	}
	set[c.Id] = c
}

func (r *ConversationRelay) unbind(sessionId, connectionId string) {
	if sessionId == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.bySession[sessionId]
	if !ok {
		return
	}
	delete(set, connectionId)
	if len(set) == 0 {
		delete(r.bySession, sessionId)
	}
}

// clients 会话在本进程的连接快照
func (r *ConversationRelay) clients(sessionId string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.bySession[sessionId]
	out := make([]*Client, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

// SendTo 发给指定连接，连接不在本进程时忽略
func (r *ConversationRelay) SendTo(connectionId string, msg Outbound) {
	if v, ok := r.connections.Load(connectionId); ok {
		v.(*Client).Send(msg)
	}
}

// NotifySession 发给会话在本进程的所有连接
func (r *ConversationRelay) NotifySession(sessionId string, msg Outbound) {
	for _, c := range r.clients(sessionId) {
		c.Send(msg)
	}
}
