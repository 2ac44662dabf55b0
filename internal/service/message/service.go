// Package message 消息、公钥与附件
// 服务端只存储客户端加密后的内容，不解析消息正文
package message

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"just_sending_server/internal/dao/mysql/repository"
	"just_sending_server/internal/infrastructure/storage"
	"just_sending_server/internal/model"
	"just_sending_server/internal/service/session"
	"just_sending_server/internal/service/stats"
	"just_sending_server/pkg/errorx"
	"just_sending_server/pkg/util/snowflake"
)

// PostInput 发送消息参数
type PostInput struct {
	SessionId                string
	SessionVerification      string
	SocketConnectionId       string
	EncryptionPublicKeyAlias string
	Text                     string
}

// SaveKeyInput 保存公钥参数
type SaveKeyInput struct {
	SessionId           string
	SessionVerification string
	Alias               string
	PublicKey           string
}

// Service 消息业务
type Service struct {
	repos         *repository.Repositories
	sessions      *session.Service
	stats         *stats.Service
	uploads       *storage.UploadStore
	maxUploadSize int64
}

// NewMessageService 构造函数，注入所有依赖
func NewMessageService(
	repos *repository.Repositories,
	sessions *session.Service,
	statsSvc *stats.Service,
	uploads *storage.UploadStore,
	maxUploadSize int64,
) *Service {
	return &Service{
		repos:         repos,
		sessions:      sessions,
		stats:         statsSvc,
		uploads:       uploads,
		maxUploadSize: maxUploadSize,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// newMessage 生成未持久化的消息
func newMessage(in PostInput) *model.Message {
	now := time.Now().UTC()
	return &model.Message{
		Id:                       snowflake.GenerateIDString(),
		SessionId:                in.SessionId,
		SessionIdVerification:    optional(in.SessionVerification),
		SocketConnectionId:       optional(in.SocketConnectionId),
		EncryptionPublicKeyAlias: optional(in.EncryptionPublicKeyAlias),
		Text:                     in.Text,
		DateSent:                 now.Format(model.TimeLayout),
		DateSentEpoch:            now.Unix(),
	}
}

// save 会话存在时落库并记录统计
func (s *Service) save(ctx context.Context, msg *model.Message) error {
	if _, err := s.sessions.Get(ctx, msg.SessionId); err != nil {
		if errorx.IsNotFound(err) {
			return errorx.ErrSessionNotExist
		}
		return err
	}
	if err := s.repos.Message.Create(ctx, msg); err != nil {
		zap.L().Error("保存消息失败", zap.String("session_id", msg.SessionId), zap.Error(err))
		return errorx.ErrServerBusy
	}
	s.stats.RecordMessage(ctx, int64(len(msg.Text)), msg.FileSizeBytes)
	return nil
}

// Post 发送文本消息，会话没有在线设备也能发送
func (s *Service) Post(ctx context.Context, in PostInput) (*model.Message, error) {
	msg := newMessage(in)
	if err := s.save(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// AddNotification 插入系统通知（设备加入 / 离开）
// 通知不计入消息统计
func (s *Service) AddNotification(ctx context.Context, sessionId, connectionId, text string) (*model.Message, error) {
	msg := newMessage(PostInput{SessionId: sessionId, SocketConnectionId: connectionId, Text: text})
	msg.IsNotification = true
	if err := s.repos.Message.Create(ctx, msg); err != nil {
		zap.L().Error("保存通知失败", zap.String("session_id", sessionId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	return msg, nil
}

// List 增量拉取消息，最新的在前；会话校验失败返回空列表
func (s *Service) List(ctx context.Context, id, verification string, from int64) ([]model.Message, error) {
	if id == "" || verification == "" {
		return []model.Message{}, nil
	}
	if _, err := s.sessions.Verify(ctx, id, verification); err != nil {
		if errorx.IsNotFound(err) {
			return []model.Message{}, nil
		}
		return nil, err
	}
	msgs, err := s.repos.Message.FindBySessionSince(ctx, id, from)
	if err != nil {
		zap.L().Error("查询消息失败", zap.String("session_id", id), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	return msgs, nil
}

// Raw 获取单条消息正文，消息不属于该会话时视为不存在
func (s *Service) Raw(ctx context.Context, messageId, sessionId string) (string, error) {
	msg, err := s.find(ctx, messageId, sessionId)
	if err != nil {
		return "", err
	}
	return msg.Text, nil
}

func (s *Service) find(ctx context.Context, messageId, sessionId string) (*model.Message, error) {
	msg, err := s.repos.Message.FindById(ctx, messageId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, err
		}
		zap.L().Error("查询消息失败", zap.String("message_id", messageId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	if msg.SessionId != sessionId {
		return nil, errorx.New(errorx.CodeNotFound, "message not found")
	}
	return msg, nil
}

// ValidateRSAJwk 公钥必须是带 n、e 的 RSA JWK
func ValidateRSAJwk(raw string) error {
	var jwk map[string]any
	if err := json.Unmarshal([]byte(raw), &jwk); err != nil {
		return errorx.Wrap(err, errorx.CodeInvalidParam, "Invalid public key format")
	}
	kty, _ := jwk["kty"].(string)
	_, hasN := jwk["n"]
	_, hasE := jwk["e"]
	if kty != "RSA" || !hasN || !hasE {
		return errorx.New(errorx.CodeInvalidParam, "Invalid RSA public key")
	}
	return nil
}

// SavePublicKey 保存会话公钥，返回公钥 ID
func (s *Service) SavePublicKey(ctx context.Context, in SaveKeyInput) (string, error) {
	if in.SessionId == "" || in.SessionVerification == "" || in.Alias == "" || in.PublicKey == "" {
		return "", errorx.ErrInvalidParam
	}
	if err := ValidateRSAJwk(in.PublicKey); err != nil {
		return "", err
	}
	if _, err := s.sessions.Verify(ctx, in.SessionId, in.SessionVerification); err != nil {
		return "", err
	}

	key := &model.PublicKey{
		Id:            snowflake.GenerateIDString(),
		SessionId:     in.SessionId,
		Alias:         in.Alias,
		PublicKeyJson: in.PublicKey,
		DateCreated:   time.Now().UTC(),
	}
	if err := s.repos.PublicKey.Create(ctx, key); err != nil {
		zap.L().Error("保存公钥失败", zap.String("session_id", in.SessionId), zap.Error(err))
		return "", errorx.ErrServerBusy
	}
	return key.Id, nil
}

// GetPublicKey 根据 ID 获取公钥
func (s *Service) GetPublicKey(ctx context.Context, id string) (*model.PublicKey, error) {
	key, err := s.repos.PublicKey.FindById(ctx, id)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.New(errorx.CodeNotFound, "Public key not found")
		}
		zap.L().Error("查询公钥失败", zap.String("id", id), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	return key, nil
}

// diskFileName 附件在上传目录中的文件名
//   - 加密上传：<消息ID>.enc，避免密文文件名里的特殊字符
//   - 普通上传：原文件名，重名时追加消息 ID 后 6 位
func (s *Service) diskFileName(msg *model.Message, original string) string {
	if msg.EncryptionPublicKeyAlias != nil {
		return msg.Id + ".enc"
	}
	name := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = msg.Id
	}
	if !s.uploads.Exists(msg.SessionId, name) {
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := stem + "_" + msg.Id[len(msg.Id)-6:] + ext
	if !s.uploads.Exists(msg.SessionId, candidate) {
		return candidate
	}
	return stem + "_" + msg.Id + ext
}

// UploadFile 保存附件并生成带附件的消息
// in.Text 为空时用原文件名作为消息正文
func (s *Service) UploadFile(ctx context.Context, in PostInput, fileName string, r io.Reader) (*model.Message, error) {
	if _, err := s.sessions.Get(ctx, in.SessionId); err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.ErrSessionNotExist
		}
		return nil, err
	}
	if in.Text == "" {
		in.Text = fileName
	}

	msg := newMessage(in)
	diskName := s.diskFileName(msg, fileName)
	size, err := s.uploads.Save(in.SessionId, diskName, r, s.maxUploadSize)
	if err != nil {
		if errorx.GetCode(err) != errorx.CodePayloadTooLarge {
			zap.L().Error("保存附件失败", zap.String("session_id", in.SessionId), zap.Error(err))
		}
		return nil, err
	}

	msg.HasFile = true
	msg.FileName = &diskName
	msg.FileSizeBytes = &size
	if err := s.save(ctx, msg); err != nil {
		if rmErr := s.uploads.Fs().Remove(filepath.Join(s.uploads.Dir(in.SessionId), diskName)); rmErr != nil {
			zap.L().Warn("清理附件失败", zap.String("file", diskName), zap.Error(rmErr))
		}
		return nil, err
	}
	return msg, nil
}

// OpenFile 打开消息附件，返回文件与下载文件名
func (s *Service) OpenFile(ctx context.Context, messageId, sessionId string) (afero.File, string, error) {
	msg, err := s.find(ctx, messageId, sessionId)
	if err != nil {
		return nil, "", err
	}
	name := msg.Text
	if msg.FileName != nil {
		name = *msg.FileName
	}
	f, err := s.uploads.Open(sessionId, name)
	if err != nil {
		return nil, "", err
	}
	return f, name, nil
}
