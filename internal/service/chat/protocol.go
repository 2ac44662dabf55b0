// Package chat 实时中继
// protocol.go
// WebSocket 帧格式：JSON 对象，type 字段区分消息种类
package chat

import (
	"just_sending_server/internal/service/sharetoken"
)

// 客户端 -> 服务端
const (
	TypeConnect      = "connect"
	TypeCallPeer     = "callPeer"
	TypeShare        = "share"
	TypeCancelShare  = "cancelShare"
	TypeEraseSession = "eraseSession"
	TypeInit         = "init"
	TypeBroadcast    = "broadcast"
)

// 服务端 -> 客户端
const (
	TypeConnected            = "connected"
	TypeRequestReloadMessage = "requestReloadMessage"
	TypeShowSharePanel       = "showSharePanel"
	TypeHideSharePanel       = "hideSharePanel"
	TypeSessionDeleted       = "sessionDeleted"
	TypeSetNumberOfDevices   = "setNumberOfDevices"
	TypeStartKeyExchange     = "startKeyExchange"
	TypeCallback             = "callback"
)

// 安全线路事件
const (
	EventStart = "Start"
	EventGone  = "GONE"
)

// 通知文案
const (
	NotifyDeviceJoined = `A new device connected.<br/><i class="fa fa-lock"></i> Message is end to end encrypted.`
	NotifyPairHint     = `<hr/><div class='text-info'>Frequently share data between these devices?<br/><span class='small'>Bookmark this page on each devices to quickly connect your devices.</span></div>`
	NotifyDeviceLeft   = `A device was disconnected.`
)

// Inbound 客户端帧，两个中继共用
type Inbound struct {
	Type      string  `json:"type"`
	SessionId string  `json:"sessionId,omitempty"`
	Id        string  `json:"id,omitempty"`
	PeerId    string  `json:"peerId,omitempty"`
	Method    string  `json:"method,omitempty"`
	Param     string  `json:"param,omitempty"`
	Event     string  `json:"event,omitempty"`
	Data      *string `json:"data,omitempty"`
	All       bool    `json:"all,omitempty"`
}

// Outbound 服务端帧
// 需要区分零值和缺省的字段用指针
type Outbound struct {
	Type         string  `json:"type"`
	ConnectionId string  `json:"connectionId,omitempty"`
	Token        string  `json:"token,omitempty"`
	Count        *int    `json:"count,omitempty"`
	PeerId       string  `json:"peerId,omitempty"`
	Pka          string  `json:"pka,omitempty"`
	Initiate     *bool   `json:"initiate,omitempty"`
	Method       string  `json:"method,omitempty"`
	Event        string  `json:"event,omitempty"`
	Data         *string `json:"data,omitempty"`
}

func Connected(connectionId string) Outbound {
	return Outbound{Type: TypeConnected, ConnectionId: connectionId}
}

func RequestReloadMessage() Outbound {
	return Outbound{Type: TypeRequestReloadMessage}
}

func ShowSharePanel(token int64) Outbound {
	return Outbound{Type: TypeShowSharePanel, Token: sharetoken.FormatToken(token)}
}

func HideSharePanel() Outbound {
	return Outbound{Type: TypeHideSharePanel}
}

func SessionDeleted() Outbound {
	return Outbound{Type: TypeSessionDeleted}
}

func SetNumberOfDevices(count int) Outbound {
	return Outbound{Type: TypeSetNumberOfDevices, Count: &count}
}

func StartKeyExchange(peerId, pka string, initiate bool) Outbound {
	return Outbound{Type: TypeStartKeyExchange, PeerId: peerId, Pka: pka, Initiate: &initiate}
}

func Callback(method, data string) Outbound {
	return Outbound{Type: TypeCallback, Method: method, Data: &data}
}

// Broadcast 安全线路广播，data 为 nil 时不带 data 字段
func Broadcast(event string, data *string) Outbound {
	return Outbound{Type: TypeBroadcast, Event: event, Data: data}
}
