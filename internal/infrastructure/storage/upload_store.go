// Package storage 会话上传区
// 每个会话一个目录：<root>/<sessionId>/<fileName>
package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"just_sending_server/pkg/errorx"

	"github.com/spf13/afero"
)

// UploadStore 会话上传目录
type UploadStore struct {
	fs   afero.Fs
	root string
}

// NewUploadStore 创建上传目录管理，fs 为 nil 时使用本地文件系统
func NewUploadStore(fs afero.Fs, root string) *UploadStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &UploadStore{fs: fs, root: root}
}

// Fs 底层文件系统
func (s *UploadStore) Fs() afero.Fs {
	return s.fs
}

// cleanName 只保留最后一段，防止目录穿越
func cleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}

// Dir 会话目录
func (s *UploadStore) Dir(sessionId string) string {
	return filepath.Join(s.root, cleanName(sessionId))
}

func (s *UploadStore) path(sessionId, fileName string) (string, error) {
	sid, name := cleanName(sessionId), cleanName(fileName)
	if sid == "" || name == "" {
		return "", errorx.New(errorx.CodeInvalidParam, "invalid file name")
	}
	return filepath.Join(s.root, sid, name), nil
}

// Exists 文件是否存在
func (s *UploadStore) Exists(sessionId, fileName string) bool {
	p, err := s.path(sessionId, fileName)
	if err != nil {
		return false
	}
	ok, _ := afero.Exists(s.fs, p)
	return ok
}

// Save 写入文件，返回写入字节数
// 超过 limit（>0 时生效）会删除半成品并返回 CodePayloadTooLarge
func (s *UploadStore) Save(sessionId, fileName string, r io.Reader, limit int64) (int64, error) {
	p, err := s.path(sessionId, fileName)
	if err != nil {
		return 0, err
	}
	if err := s.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return 0, errorx.Wrap(err, errorx.CodeServerBusy, "create upload dir")
	}

	f, err := s.fs.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, errorx.Wrap(err, errorx.CodeServerBusy, "create upload file")
	}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, copyErr := io.Copy(f, src)
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		_ = s.fs.Remove(p)
		return 0, errorx.Wrap(copyErr, errorx.CodeServerBusy, "write upload file")
	case closeErr != nil:
		_ = s.fs.Remove(p)
		return 0, errorx.Wrap(closeErr, errorx.CodeServerBusy, "close upload file")
	case limit > 0 && n > limit:
		_ = s.fs.Remove(p)
		return 0, errorx.Newf(errorx.CodePayloadTooLarge, "file exceeds %d bytes", limit)
	}
	return n, nil
}

// Open 打开文件读取，不存在返回 CodeNotFound
func (s *UploadStore) Open(sessionId, fileName string) (afero.File, error) {
	p, err := s.path(sessionId, fileName)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errorx.Wrap(err, errorx.CodeNotFound, "file not found")
		}
		return nil, errorx.Wrap(err, errorx.CodeServerBusy, "open upload file")
	}
	return f, nil
}

// RemoveSession 删除会话目录，目录不存在不算错误
func (s *UploadStore) RemoveSession(sessionId string) error {
	sid := cleanName(sessionId)
	if sid == "" {
		return nil
	}
	if err := s.fs.RemoveAll(filepath.Join(s.root, sid)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
