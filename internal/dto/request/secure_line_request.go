package request

// HandoffPutRequest 暂存安全线路交接消息
type HandoffPutRequest struct {
	Id   string `json:"Id" binding:"required"`
	Data string `json:"Data" binding:"required"`
}

// HandoffGetRequest 取走交接消息
type HandoffGetRequest struct {
	Id string `form:"id" binding:"required"`
}
