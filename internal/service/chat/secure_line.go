package chat

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	myredis "just_sending_server/internal/dao/redis"
	"just_sending_server/internal/infrastructure/metrics"
	"just_sending_server/internal/service/stats"
	"just_sending_server/pkg/constants"
)

const relaySecureLine = "secure_line"

// SecureLineRelay 两人安全线路
// 线路只存在于本进程内存，没有持久化的会话记录；交接消息放在 KV 中，到期自动清理
type SecureLineRelay struct {
	stats      *stats.Service
	kv         myredis.CacheService
	handoffTTL time.Duration

	mu    sync.Mutex
	lines map[string][]*Client // lineId -> 按加入顺序的参与者
}

func NewSecureLineRelay(statsSvc *stats.Service, kv myredis.CacheService, handoffTTL time.Duration) *SecureLineRelay {
	if handoffTTL <= 0 {
		handoffTTL = constants.HANDOFF_TTL
	}
	return &SecureLineRelay{
		stats:      statsSvc,
		kv:         kv,
		handoffTTL: handoffTTL,
		lines:      make(map[string][]*Client),
	}
}

func (r *SecureLineRelay) OnOpen(ctx context.Context, c *Client) {
	r.stats.RecordEvent(ctx, stats.KindDevices, 1)
	metrics.ConnectionOpened(relaySecureLine)
}

func (r *SecureLineRelay) OnMessage(ctx context.Context, c *Client, raw []byte) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		zap.L().Warn("无法解析的帧", zap.String("connection_id", c.Id), zap.Error(err))
		return
	}

	if in.Type == TypeInit {
		r.init(ctx, c, in.Id)
		return
	}

	lineId := c.SessionId()
	if lineId == "" {
		zap.L().Warn("未加入线路的连接发送了帧", zap.String("connection_id", c.Id), zap.String("type", in.Type))
		return
	}

	switch in.Type {
	case TypeBroadcast:
		r.broadcast(ctx, c, lineId, in)
	case TypeCallPeer:
		r.stats.RecordEvent(ctx, stats.KindMessages, 1)
		for _, peer := range r.participants(lineId) {
			if peer.Id != c.Id {
				peer.Send(Callback(in.Method, in.Param))
			}
		}
	default:
		zap.L().Warn("未知的帧类型", zap.String("connection_id", c.Id), zap.String("type", in.Type))
	}
}

// OnClose 通知剩下的参与者对端已离开
func (r *SecureLineRelay) OnClose(ctx context.Context, c *Client) {
	metrics.ConnectionClosed(relaySecureLine)
	lineId := c.SessionId()
	if lineId == "" {
		return
	}

	r.mu.Lock()
	rest := slices.DeleteFunc(r.lines[lineId], func(p *Client) bool { return p.Id == c.Id })
	if len(rest) == 0 {
		delete(r.lines, lineId)
	} else {
		r.lines[lineId] = rest
	}
	rest = slices.Clone(rest)
	r.mu.Unlock()

	gone := ""
	for _, peer := range rest {
		peer.Send(Broadcast(EventGone, &gone))
	}
}

// init 加入线路，满员时静默拒绝，连接保持打开
func (r *SecureLineRelay) init(ctx context.Context, c *Client, lineId string) {
	if lineId == "" || c.SessionId() != "" {
		return
	}

	r.mu.Lock()
	line := r.lines[lineId]
	if len(line) >= constants.SECURE_LINE_CAPACITY {
		r.mu.Unlock()
		zap.L().Info("线路已满，拒绝加入", zap.String("line_id", lineId), zap.String("connection_id", c.Id))
		return
	}
	c.bind(lineId)
	line = append(line, c)
	r.lines[lineId] = line
	pair := slices.Clone(line)
	r.mu.Unlock()

	if len(pair) != constants.SECURE_LINE_CAPACITY {
		return
	}

	r.stats.RecordEvent(ctx, stats.KindMessages, 2)
	r.stats.RecordEvent(ctx, stats.KindDevices, 1)
	for _, p := range pair {
		p.Send(Broadcast(EventStart, nil))
	}
	pka := uuid.NewString()
	pair[0].Send(StartKeyExchange(pair[1].Id, pka, false))
	pair[1].Send(StartKeyExchange(pair[0].Id, pka, true))
}

func (r *SecureLineRelay) broadcast(ctx context.Context, c *Client, lineId string, in Inbound) {
	size := int64(len(in.Event))
	if in.Data != nil {
		size += int64(len(*in.Data))
	}
	r.stats.RecordMessage(ctx, size, nil)

	msg := Broadcast(in.Event, in.Data)
	for _, peer := range r.participants(lineId) {
		if in.All || peer.Id != c.Id {
			peer.Send(msg)
		}
	}
}

func (r *SecureLineRelay) participants(lineId string) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.lines[lineId])
}

// PutMessage 暂存一条交接消息，同一 id 先写入者生效
// 未被取走的消息在 handoffTTL 后过期
func (r *SecureLineRelay) PutMessage(ctx context.Context, id, data string) (bool, error) {
	stored, err := r.kv.SetNX(ctx, constants.KEY_HANDOFF+id, data, r.handoffTTL)
	if err != nil {
		zap.L().Error("暂存交接消息失败", zap.String("id", id), zap.Error(err))
		return false, err
	}
	return stored, nil
}

// TakeMessage 取走交接消息，只能取一次
func (r *SecureLineRelay) TakeMessage(ctx context.Context, id string) (string, bool, error) {
	data, err := r.kv.Take(ctx, constants.KEY_HANDOFF+id)
	if err != nil {
		zap.L().Error("读取交接消息失败", zap.String("id", id), zap.Error(err))
		return "", false, err
	}
	return data, data != "", nil
}
