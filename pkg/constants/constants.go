package constants

import "time"

const (
	CHANNEL_SIZE = 100 // 每个连接的发送通道大小

	SESSION_ID_LENGTH       = 32                // 会话 ID / 校验码长度
	DEFAULT_SESSION_TTL     = 24 * time.Hour    // 会话默认存活时间
	DEFAULT_MAX_UPLOAD_SIZE = 80 * 1024 * 1024  // 默认上传上限 (80MB)
	STATS_CACHE_TTL         = time.Hour         // 统计结果缓存时间
	SECURE_LINE_CAPACITY    = 2                 // 安全线路最大参与者数
	HANDOFF_TTL             = 10 * time.Minute  // 交接消息保留时间
	SHARE_TOKEN_MIN         = int64(100000)     // 配对码初始下界（含）
	SHARE_TOKEN_MAX         = int64(1000000)    // 配对码初始上界（不含）
	WS_WRITE_WAIT           = 10 * time.Second  // 单帧写超时
	WS_MAX_MESSAGE_SIZE     = 1 << 20           // 单帧读取上限
	PEER_ALL                = "ALL"             // callPeer 广播目标
)

// KV 键前缀
const (
	KEY_SHARE_TOKEN   = "share:token:"
	KEY_SHARE_SESSION = "share:session:"
	KEY_CONNECTION    = "conn:"
	KEY_HANDOFF       = "handoff:"
	KEY_STATS_RAW     = "stats:raw"
)
